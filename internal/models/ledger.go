package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	KindPurchase   LedgerKind = "purchase"
	KindWithdrawal LedgerKind = "withdrawal"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
)

var ErrInvalidLedgerEntry = errors.New("invalid ledger entry")

// PaymentTransaction is the storage row of the ledger. Amount is never
// negative; Kind says which way it moves the organizer's balance.
// PaymentReference is unique across the table.
type PaymentTransaction struct {
	ID               string            `json:"id" gorm:"column:id;primaryKey;size:36"`
	Kind             LedgerKind        `json:"kind" gorm:"column:kind;size:20;not null"`
	TicketID         *string           `json:"ticket_id,omitempty" gorm:"column:ticket_id;size:36"`
	EventID          *string           `json:"event_id,omitempty" gorm:"column:event_id;size:36"`
	BuyerID          *string           `json:"buyer_id,omitempty" gorm:"column:buyer_id;size:36"`
	OrganizerID      string            `json:"organizer_id" gorm:"column:organizer_id;size:36;not null;index"`
	Amount           decimal.Decimal   `json:"amount" gorm:"column:amount;type:decimal(12,2);not null"`
	Currency         string            `json:"currency" gorm:"column:currency;size:3;not null"`
	Status           TransactionStatus `json:"status" gorm:"column:status;size:20;not null"`
	PaymentReference string            `json:"payment_reference" gorm:"column:payment_reference;size:128;not null;uniqueIndex"`
	IsFree           bool              `json:"is_free" gorm:"column:is_free;not null;default:false"`
	PaymentDate      time.Time         `json:"payment_date" gorm:"column:payment_date;not null"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

// LedgerEntry is either a PurchaseEntry or a WithdrawalEntry.
type LedgerEntry interface {
	Kind() LedgerKind
	Validate() error
	// BalanceDelta is the signed change this entry applies to the wallet.
	BalanceDelta() decimal.Decimal
	Transaction() *PaymentTransaction
}

type PurchaseEntry struct {
	ID          string
	TicketID    string
	EventID     string
	BuyerID     string
	OrganizerID string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	IsFree      bool
	Status      TransactionStatus
	PaidAt      time.Time
}

func (e *PurchaseEntry) Kind() LedgerKind { return KindPurchase }

func (e *PurchaseEntry) Validate() error {
	switch {
	case e.TicketID == "" || e.EventID == "" || e.BuyerID == "":
		return fmt.Errorf("%w: purchase needs ticket, event and buyer", ErrInvalidLedgerEntry)
	case e.OrganizerID == "":
		return fmt.Errorf("%w: purchase needs an organizer", ErrInvalidLedgerEntry)
	case e.Reference == "":
		return fmt.Errorf("%w: purchase needs a reference", ErrInvalidLedgerEntry)
	case e.Amount.IsNegative():
		return fmt.Errorf("%w: purchase amount is negative", ErrInvalidLedgerEntry)
	case e.IsFree != e.Amount.IsZero():
		return fmt.Errorf("%w: free flag does not match amount %s", ErrInvalidLedgerEntry, e.Amount)
	}
	return nil
}

func (e *PurchaseEntry) BalanceDelta() decimal.Decimal { return e.Amount }

func (e *PurchaseEntry) Transaction() *PaymentTransaction {
	return &PaymentTransaction{
		ID:               e.ID,
		Kind:             KindPurchase,
		TicketID:         &e.TicketID,
		EventID:          &e.EventID,
		BuyerID:          &e.BuyerID,
		OrganizerID:      e.OrganizerID,
		Amount:           e.Amount,
		Currency:         e.Currency,
		Status:           e.Status,
		PaymentReference: e.Reference,
		IsFree:           e.IsFree,
		PaymentDate:      e.PaidAt,
	}
}

type WithdrawalEntry struct {
	ID          string
	OrganizerID string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	RequestedAt time.Time
}

func (e *WithdrawalEntry) Kind() LedgerKind { return KindWithdrawal }

func (e *WithdrawalEntry) Validate() error {
	switch {
	case e.OrganizerID == "":
		return fmt.Errorf("%w: withdrawal needs an organizer", ErrInvalidLedgerEntry)
	case e.Reference == "":
		return fmt.Errorf("%w: withdrawal needs a reference", ErrInvalidLedgerEntry)
	case !e.Amount.IsPositive():
		return fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidLedgerEntry)
	}
	return nil
}

func (e *WithdrawalEntry) BalanceDelta() decimal.Decimal { return e.Amount.Neg() }

func (e *WithdrawalEntry) Transaction() *PaymentTransaction {
	return &PaymentTransaction{
		ID:               e.ID,
		Kind:             KindWithdrawal,
		OrganizerID:      e.OrganizerID,
		Amount:           e.Amount,
		Currency:         e.Currency,
		Status:           TransactionCompleted,
		PaymentReference: e.Reference,
		PaymentDate:      e.RequestedAt,
	}
}

// Entry rebuilds the typed ledger entry from a stored row.
func (t *PaymentTransaction) Entry() (LedgerEntry, error) {
	switch t.Kind {
	case KindPurchase:
		return &PurchaseEntry{
			ID:          t.ID,
			TicketID:    deref(t.TicketID),
			EventID:     deref(t.EventID),
			BuyerID:     deref(t.BuyerID),
			OrganizerID: t.OrganizerID,
			Amount:      t.Amount,
			Currency:    t.Currency,
			Reference:   t.PaymentReference,
			IsFree:      t.IsFree,
			Status:      t.Status,
			PaidAt:      t.PaymentDate,
		}, nil
	case KindWithdrawal:
		return &WithdrawalEntry{
			ID:          t.ID,
			OrganizerID: t.OrganizerID,
			Amount:      t.Amount,
			Currency:    t.Currency,
			Reference:   t.PaymentReference,
			RequestedAt: t.PaymentDate,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidLedgerEntry, t.Kind)
	}
}

// SignedAmount is the amount as it affects the balance, for listings.
func (t *PaymentTransaction) SignedAmount() decimal.Decimal {
	if t.Kind == KindWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

type OrganizerWallet struct {
	OrganizerID string          `json:"organizer_id" gorm:"column:organizer_id;primaryKey;size:36"`
	Balance     decimal.Decimal `json:"balance" gorm:"column:balance;type:decimal(14,2);not null;default:0"`
	LastUpdated time.Time       `json:"last_updated" gorm:"column:last_updated;not null"`
}

func (OrganizerWallet) TableName() string { return "organizer_wallets" }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
