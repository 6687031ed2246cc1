package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

func quietLogger() *logger.Logger {
	return logger.NewLoggerWithWriter(io.Discard, logger.LevelError)
}

func newMockMySQL(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &MySQLStore{db: db, log: quietLogger()}, mock
}

func sqlPattern(fragment string) string { return regexp.QuoteMeta(fragment) }

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, isDuplicate(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1452}))
	assert.False(t, isDuplicate(errors.New("boom")))
	assert.False(t, isDuplicate(nil))
}

func TestMySQLIssueTicketCommitsAllWrites(t *testing.T) {
	s, mock := newMockMySQL(t)
	ticket, entry := purchase("ref_a", "tk-1", 100)

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("INSERT INTO payment_transactions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("UPDATE ticket_types SET sold = sold + 1")).
		WithArgs("tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("INSERT INTO tickets")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("INSERT INTO organizer_wallets")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.IssueTicket(context.Background(), ticket, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLIssueFreeTicketSkipsWallet(t *testing.T) {
	s, mock := newMockMySQL(t)
	ticket, entry := purchase("free_1", "tk-1", 0)

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("INSERT INTO payment_transactions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("UPDATE ticket_types")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("INSERT INTO tickets")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.IssueTicket(context.Background(), ticket, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLIssueTicketDuplicateBeforeSoldOut(t *testing.T) {
	s, mock := newMockMySQL(t)
	ticket, entry := purchase("ref_last", "tk-2", 100)

	// The reference was committed by a concurrent verification that also took
	// the last seat; the sold counter must not be consulted.
	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("INSERT INTO payment_transactions")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ref_last'"})
	mock.ExpectRollback()

	err := s.IssueTicket(context.Background(), ticket, entry)
	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLIssueTicketSoldOutRollsBack(t *testing.T) {
	s, mock := newMockMySQL(t)
	ticket, entry := purchase("ref_b", "tk-3", 100)

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("INSERT INTO payment_transactions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("UPDATE ticket_types")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.IssueTicket(context.Background(), ticket, entry)
	assert.ErrorIs(t, err, ErrSoldOut)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func withdrawal(amount int64) *models.WithdrawalEntry {
	return &models.WithdrawalEntry{
		ID: "wd-1", OrganizerID: "org-1", Amount: decimal.NewFromInt(amount),
		Currency: "NGN", Reference: "wd_ref_1", RequestedAt: time.Now(),
	}
}

func TestMySQLWithdrawDebitsAndRecords(t *testing.T) {
	s, mock := newMockMySQL(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("UPDATE organizer_wallets SET balance = balance - ?")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("INSERT INTO payment_transactions")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sqlPattern("SELECT balance, last_updated FROM organizer_wallets")).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance", "last_updated"}).AddRow("4000.00", now))
	mock.ExpectCommit()

	wallet, err := s.Withdraw(context.Background(), withdrawal(1000))
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(4000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLWithdrawInsufficientFunds(t *testing.T) {
	s, mock := newMockMySQL(t)

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("UPDATE organizer_wallets")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.Withdraw(context.Background(), withdrawal(1000000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func checkInAudit(action models.CheckInAction) *models.CheckInAudit {
	return &models.CheckInAudit{ID: "au-1", TicketID: "tk-1", Action: action, ActorID: "org-1", CreatedAt: time.Now()}
}

func TestMySQLApplyCheckInWritesAudit(t *testing.T) {
	s, mock := newMockMySQL(t)
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("UPDATE tickets SET checked_in = ?, checked_in_at = ?")).
		WithArgs(true, at, "tk-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlPattern("INSERT INTO check_in_audit")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.ApplyCheckIn(context.Background(), "tk-1", true, &at, checkInAudit(models.ActionCheckIn)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLApplyCheckInStale(t *testing.T) {
	s, mock := newMockMySQL(t)

	mock.ExpectBegin()
	mock.ExpectExec(sqlPattern("UPDATE tickets")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.ApplyCheckIn(context.Background(), "tk-1", false, nil, checkInAudit(models.ActionRevoke))
	assert.ErrorIs(t, err, ErrStaleCheckIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}
