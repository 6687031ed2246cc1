package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
	"event-ticketing/internal/storage"
	"event-ticketing/internal/utils"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 200
)

type WalletService struct {
	broadcaster
	store    storage.Store
	currency string
}

func NewWalletService(store storage.Store, events EventPublisher, notifier Notifier, currency string, log *logger.Logger) *WalletService {
	return &WalletService{
		broadcaster: broadcaster{events: events, notifier: notifier, log: log, now: time.Now},
		store:       store,
		currency:    currency,
	}
}

func (s *WalletService) GetWallet(ctx context.Context, session models.Session) (*models.OrganizerWallet, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	return s.store.GetWallet(ctx, session.UserID)
}

// LedgerLine is a ledger row as shown to the organizer, with the amount
// signed by entry kind.
type LedgerLine struct {
	*models.PaymentTransaction
	SignedAmount decimal.Decimal `json:"signed_amount"`
}

func (s *WalletService) Ledger(ctx context.Context, session models.Session, limit, offset int) ([]LedgerLine, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	if limit > maxLedgerLimit {
		limit = maxLedgerLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.store.ListLedger(ctx, session.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	lines := make([]LedgerLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, LedgerLine{PaymentTransaction: row, SignedAmount: row.SignedAmount()})
	}
	return lines, nil
}

// Withdraw records a withdrawal entry and debits the wallet atomically.
func (s *WalletService) Withdraw(ctx context.Context, session models.Session, amount decimal.Decimal) (*models.OrganizerWallet, *models.PaymentTransaction, error) {
	if session.IsZero() {
		return nil, nil, ErrUnauthenticated
	}
	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}

	entry := &models.WithdrawalEntry{
		ID:          utils.GenerateUUID(),
		OrganizerID: session.UserID,
		Amount:      amount.Round(2),
		Currency:    s.currency,
		Reference:   utils.GenerateWithdrawalReference(),
		RequestedAt: s.now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, nil, ErrInvalidAmount
	}

	wallet, err := s.store.Withdraw(ctx, entry)
	if errors.Is(err, storage.ErrInsufficientFunds) {
		s.log.LogPayment("WITHDRAW_REJECTED", entry.Reference, fmt.Sprintf("%s asked for %s", session.UserID, amount))
		return nil, nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	tx := entry.Transaction()
	s.log.LogPayment("WITHDRAWN", entry.Reference, fmt.Sprintf("%s withdrew %s %s, balance %s", session.UserID, entry.Amount, entry.Currency, wallet.Balance))
	s.publish(models.EventWalletWithdrawn, entry.Reference, "", tx)
	s.organizerChanged(session.UserID, "INSERT", "payment_transactions", tx.ID)
	return wallet, tx, nil
}
