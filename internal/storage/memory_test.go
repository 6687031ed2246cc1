package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-ticketing/internal/models"
)

func seedTicketType(t *testing.T, s *InMemoryStore, quantity, sold int) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		ID: "tt-1", EventID: "ev-1", Name: "General", Price: decimal.NewFromInt(100),
		Quantity: quantity, Sold: sold, IsActive: true, CreatedAt: time.Now(),
	}
	require.NoError(t, s.SaveTicketType(context.Background(), tt))
	return tt
}

func purchase(ref, ticketID string, amount int64) (*models.Ticket, *models.PurchaseEntry) {
	now := time.Now()
	ticket := &models.Ticket{
		ID: ticketID, EventID: "ev-1", TicketTypeID: "tt-1", UserID: "user-1",
		Price: decimal.NewFromInt(amount), Status: models.TicketActive, QRCode: "qr-" + ticketID, PurchaseDate: now,
	}
	entry := &models.PurchaseEntry{
		ID: "tx-" + ticketID, TicketID: ticketID, EventID: "ev-1", BuyerID: "user-1", OrganizerID: "org-1",
		Amount: decimal.NewFromInt(amount), Currency: "NGN", Reference: ref, IsFree: amount == 0,
		Status: models.TransactionCompleted, PaidAt: now,
	}
	return ticket, entry
}

func TestIssueTicketCreditsWalletAndIncrementsSold(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedTicketType(t, s, 10, 3)

	ticket, entry := purchase("ref_a", "tk-1", 100)
	require.NoError(t, s.IssueTicket(ctx, ticket, entry))

	tt, err := s.GetTicketType(ctx, "tt-1")
	require.NoError(t, err)
	assert.Equal(t, 4, tt.Sold)

	wallet, err := s.GetWallet(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(100)))

	stored, err := s.GetTransactionByReference(ctx, "ref_a")
	require.NoError(t, err)
	assert.Equal(t, "tk-1", *stored.TicketID)
}

func TestIssueFreeTicketLeavesWalletUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedTicketType(t, s, 10, 9)

	ticket, entry := purchase("free_1", "tk-1", 0)
	require.NoError(t, s.IssueTicket(ctx, ticket, entry))

	tt, _ := s.GetTicketType(ctx, "tt-1")
	assert.Equal(t, 10, tt.Sold)

	wallet, _ := s.GetWallet(ctx, "org-1")
	assert.True(t, wallet.Balance.IsZero())
}

func TestIssueTicketDuplicateReferenceLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedTicketType(t, s, 10, 0)

	ticket, entry := purchase("ref_dup", "tk-1", 100)
	require.NoError(t, s.IssueTicket(ctx, ticket, entry))

	ticket2, entry2 := purchase("ref_dup", "tk-2", 100)
	assert.ErrorIs(t, s.IssueTicket(ctx, ticket2, entry2), ErrDuplicateReference)

	tickets, txs := s.Counts()
	assert.Equal(t, 1, tickets)
	assert.Equal(t, 1, txs)
	tt, _ := s.GetTicketType(ctx, "tt-1")
	assert.Equal(t, 1, tt.Sold)
}

func TestIssueTicketDuplicateOnLastSeatReportsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedTicketType(t, s, 1, 0)

	ticket, entry := purchase("ref_last", "tk-1", 100)
	require.NoError(t, s.IssueTicket(ctx, ticket, entry))

	ticket2, entry2 := purchase("ref_last", "tk-2", 100)
	assert.ErrorIs(t, s.IssueTicket(ctx, ticket2, entry2), ErrDuplicateReference)
}

func TestIssueTicketLastSeatIsSoldOnce(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedTicketType(t, s, 10, 9)

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			ticket, entry := purchase("ref_"+id, "tk-"+id, 100)
			results <- s.IssueTicket(ctx, ticket, entry)
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, soldOut int
	for err := range results {
		switch err {
		case nil:
			ok++
		case ErrSoldOut:
			soldOut++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 19, soldOut)

	tt, _ := s.GetTicketType(ctx, "tt-1")
	assert.Equal(t, 10, tt.Sold)
}

func TestIssueTicketInactiveType(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	tt := seedTicketType(t, s, 10, 0)
	tt.IsActive = false
	require.NoError(t, s.UpdateTicketType(ctx, tt))

	ticket, entry := purchase("ref_x", "tk-1", 100)
	assert.ErrorIs(t, s.IssueTicket(ctx, ticket, entry), ErrSoldOut)

	_, err := s.GetActiveTicketType(ctx, "tt-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTicketTypeKeepsSold(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	tt := seedTicketType(t, s, 10, 6)

	tt.Quantity = 5
	assert.ErrorIs(t, s.UpdateTicketType(ctx, tt), ErrQuantityBelowSold)

	tt.Quantity = 20
	tt.Sold = 0
	require.NoError(t, s.UpdateTicketType(ctx, tt))
	stored, _ := s.GetTicketType(ctx, "tt-1")
	assert.Equal(t, 6, stored.Sold)
	assert.Equal(t, 20, stored.Quantity)
}

func TestWithdrawNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedTicketType(t, s, 10, 0)
	ticket, entry := purchase("ref_a", "tk-1", 100)
	require.NoError(t, s.IssueTicket(ctx, ticket, entry))

	wd := &models.WithdrawalEntry{
		ID: "wd-1", OrganizerID: "org-1", Amount: decimal.NewFromInt(150), Currency: "NGN",
		Reference: "wd_1", RequestedAt: time.Now(),
	}
	_, err := s.Withdraw(ctx, wd)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	wd.Amount = decimal.NewFromInt(40)
	wallet, err := s.Withdraw(ctx, wd)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(60)))

	_, err = s.Withdraw(ctx, wd)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	ledger, err := s.ListLedger(ctx, "org-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}

func TestApplyCheckInRejectsStaleState(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedTicketType(t, s, 10, 0)
	ticket, entry := purchase("ref_a", "tk-1", 100)
	require.NoError(t, s.IssueTicket(ctx, ticket, entry))

	now := time.Now()
	audit := &models.CheckInAudit{ID: "a1", TicketID: "tk-1", Action: models.ActionCheckIn, ActorID: "org-1", CreatedAt: now}
	require.NoError(t, s.ApplyCheckIn(ctx, "tk-1", true, &now, audit))
	assert.ErrorIs(t, s.ApplyCheckIn(ctx, "tk-1", true, &now, audit), ErrStaleCheckIn)

	revoke := &models.CheckInAudit{ID: "a2", TicketID: "tk-1", Action: models.ActionRevoke, ActorID: "org-1", Reason: "wrong scan", CreatedAt: now}
	require.NoError(t, s.ApplyCheckIn(ctx, "tk-1", false, nil, revoke))

	trail, err := s.ListCheckInAudit(ctx, "tk-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ActionRevoke, trail[1].Action)

	stored, _ := s.GetTicket(ctx, "tk-1")
	assert.False(t, stored.CheckedIn)
	assert.Nil(t, stored.CheckedInAt)
}
