package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-ticketing/internal/models"
)

func TestWithdrawDebitsWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.VerifyPayment(ctx, "tkt_ref_1")
	require.NoError(t, err)

	wallet, tx, err := f.wallets.Withdraw(ctx, organizer, decimal.NewFromInt(2000))
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, models.KindWithdrawal, tx.Kind)
	assert.Contains(t, f.events.types(), models.EventWalletWithdrawn)

	_, _, err = f.wallets.Withdraw(ctx, organizer, decimal.NewFromInt(3001))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, f.balance(t, "org-1").Equal(decimal.NewFromInt(3000)))

	lines, err := f.wallets.Ledger(ctx, organizer, 0, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.SignedAmount)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(3000)))
}

func TestWithdrawRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.wallets.Withdraw(ctx, models.Session{}, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	for _, v := range []int64{0, -5} {
		_, _, err = f.wallets.Withdraw(ctx, organizer, decimal.NewFromInt(v))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	_, _, err = f.wallets.Withdraw(ctx, organizer, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestGetWalletStartsAtZero(t *testing.T) {
	f := newFixture(t)

	wallet, err := f.wallets.GetWallet(context.Background(), stranger)
	require.NoError(t, err)
	assert.Equal(t, "org-2", wallet.OrganizerID)
	assert.True(t, wallet.Balance.IsZero())
}
