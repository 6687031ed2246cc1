package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrSoldOut            = errors.New("ticket type sold out or inactive")
	ErrDuplicateReference = errors.New("payment reference already recorded")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrQuantityBelowSold  = errors.New("quantity below tickets already sold")
	ErrStaleCheckIn       = errors.New("check-in state changed concurrently")
)

// Store is the persistence boundary. Every multi-row mutation below commits in
// a single transaction; counters and balances are only changed with
// conditional in-database updates, never read-modify-write from Go.
type Store interface {
	SaveEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)

	SaveTicketType(ctx context.Context, tt *models.TicketType) error
	// UpdateTicketType fails with ErrQuantityBelowSold when the new quantity
	// is smaller than the stored sold count.
	UpdateTicketType(ctx context.Context, tt *models.TicketType) error
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	GetActiveTicketType(ctx context.Context, id string) (*models.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]*models.TicketType, error)

	// IssueTicket increments sold (only while active and sold < quantity),
	// inserts the ticket and the purchase entry, and credits the organizer
	// wallet by the entry's delta. ErrSoldOut and ErrDuplicateReference leave
	// nothing behind.
	IssueTicket(ctx context.Context, ticket *models.Ticket, entry *models.PurchaseEntry) error
	GetTransactionByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]*models.Ticket, error)

	// ApplyCheckIn moves checked_in from !checkedIn to checkedIn and writes the
	// audit row. ErrStaleCheckIn when the ticket was not in the expected state.
	ApplyCheckIn(ctx context.Context, ticketID string, checkedIn bool, at *time.Time, audit *models.CheckInAudit) error
	ListCheckInAudit(ctx context.Context, ticketID string) ([]*models.CheckInAudit, error)

	// GetWallet returns a zero-balance wallet for organizers with no sales yet.
	GetWallet(ctx context.Context, organizerID string) (*models.OrganizerWallet, error)
	// Withdraw debits the wallet and records the entry. The balance never
	// goes negative: ErrInsufficientFunds otherwise.
	Withdraw(ctx context.Context, entry *models.WithdrawalEntry) (*models.OrganizerWallet, error)
	ListLedger(ctx context.Context, organizerID string, limit, offset int) ([]*models.PaymentTransaction, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// Migrator is implemented by the SQL stores.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// New opens the store selected by cfg.Driver.
func New(cfg config.DatabaseConfig, log *logger.Logger) (Store, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQLStore(cfg, log)
	case "postgres":
		return NewPostgresStore(cfg, log)
	case "memory":
		log.LogDatabase("CONNECT", "memory", "Using in-memory store")
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
