package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseEntryValidate(t *testing.T) {
	base := func() *PurchaseEntry {
		return &PurchaseEntry{
			TicketID: "tk", EventID: "ev", BuyerID: "u", OrganizerID: "org",
			Amount: decimal.NewFromInt(50), Reference: "ref_1", Status: TransactionCompleted,
		}
	}

	tests := []struct {
		name    string
		mutate  func(e *PurchaseEntry)
		wantErr bool
	}{
		{"paid entry", func(e *PurchaseEntry) {}, false},
		{"free entry", func(e *PurchaseEntry) { e.Amount = decimal.Zero; e.IsFree = true }, false},
		{"free flag on paid amount", func(e *PurchaseEntry) { e.IsFree = true }, true},
		{"zero amount not flagged free", func(e *PurchaseEntry) { e.Amount = decimal.Zero }, true},
		{"negative amount", func(e *PurchaseEntry) { e.Amount = decimal.NewFromInt(-5) }, true},
		{"missing reference", func(e *PurchaseEntry) { e.Reference = "" }, true},
		{"missing organizer", func(e *PurchaseEntry) { e.OrganizerID = "" }, true},
		{"missing ticket", func(e *PurchaseEntry) { e.TicketID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLedgerEntryDeltasAndRoundTrip(t *testing.T) {
	purchase := &PurchaseEntry{
		ID: "p1", TicketID: "tk", EventID: "ev", BuyerID: "u", OrganizerID: "org",
		Amount: decimal.RequireFromString("49.99"), Currency: "NGN", Reference: "ref_p",
		Status: TransactionCompleted, PaidAt: time.Now(),
	}
	withdrawal := &WithdrawalEntry{
		ID: "w1", OrganizerID: "org", Amount: decimal.NewFromInt(20), Currency: "NGN",
		Reference: "wd_1", RequestedAt: time.Now(),
	}

	assert.True(t, purchase.BalanceDelta().Equal(decimal.RequireFromString("49.99")))
	assert.True(t, withdrawal.BalanceDelta().Equal(decimal.NewFromInt(-20)))

	row := withdrawal.Transaction()
	assert.Equal(t, KindWithdrawal, row.Kind)
	assert.False(t, row.Amount.IsNegative(), "rows store unsigned amounts")
	assert.True(t, row.SignedAmount().Equal(decimal.NewFromInt(-20)))

	back, err := purchase.Transaction().Entry()
	require.NoError(t, err)
	assert.Equal(t, purchase, back)

	_, err = (&PaymentTransaction{Kind: "refund"}).Entry()
	assert.ErrorIs(t, err, ErrInvalidLedgerEntry)
}

func TestWithdrawalEntryRejectsNonPositive(t *testing.T) {
	e := &WithdrawalEntry{OrganizerID: "org", Reference: "wd", Amount: decimal.Zero}
	assert.ErrorIs(t, e.Validate(), ErrInvalidLedgerEntry)
}

func TestTicketTransitions(t *testing.T) {
	ticket := &Ticket{Status: TicketActive}

	next, err := ticket.Transition(ActionCheckIn)
	require.NoError(t, err)
	assert.Equal(t, StateCheckedIn, next)

	_, err = ticket.Transition(ActionRevoke)
	assert.ErrorIs(t, err, ErrNotCheckedIn)

	ticket.CheckedIn = true
	_, err = ticket.Transition(ActionCheckIn)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)

	next, err = ticket.Transition(ActionRevoke)
	require.NoError(t, err)
	assert.Equal(t, StateUnredeemed, next)

	ticket.Status = TicketCancelled
	_, err = ticket.Transition(ActionCheckIn)
	assert.ErrorIs(t, err, ErrTicketInactive)
}

func TestTicketTypeOnSale(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	assert.True(t, (&TicketType{}).OnSale(now))
	assert.True(t, (&TicketType{StartDate: &before, EndDate: &after}).OnSale(now))
	assert.False(t, (&TicketType{StartDate: &after}).OnSale(now))
	assert.False(t, (&TicketType{EndDate: &before}).OnSale(now))

	tt := &TicketType{Quantity: 10, Sold: 10}
	assert.True(t, tt.SoldOut())
	assert.Equal(t, 0, tt.Remaining())
}
