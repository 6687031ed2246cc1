package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

const mysqlDuplicateEntry = 1062

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	// clientFoundRows makes RowsAffected count matched rows, which the
	// conditional updates below rely on.
	dsn := cfg.URL
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{db: db, log: log}

	if cfg.AutoMigrate {
		if err := store.Migrate(context.Background()); err != nil {
			log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
			return nil, fmt.Errorf("failed to initialize tables: %w", err)
		}
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established")
	return store, nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
        id VARCHAR(36) PRIMARY KEY,
        organizer_id VARCHAR(36) NOT NULL,
        title VARCHAR(255) NOT NULL,
        venue VARCHAR(255) NOT NULL DEFAULT '',
        starts_at TIMESTAMP NULL,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        INDEX idx_organizer (organizer_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
        id VARCHAR(36) PRIMARY KEY,
        event_id VARCHAR(36) NOT NULL,
        name VARCHAR(255) NOT NULL,
        price DECIMAL(12,2) NOT NULL,
        quantity INT NOT NULL,
        sold INT NOT NULL DEFAULT 0,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        start_date TIMESTAMP NULL,
        end_date TIMESTAMP NULL,
        max_per_purchase INT NULL,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        INDEX idx_event (event_id),
        CONSTRAINT chk_sold CHECK (sold <= quantity)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS tickets (
        id VARCHAR(36) PRIMARY KEY,
        event_id VARCHAR(36) NOT NULL,
        ticket_type_id VARCHAR(36) NOT NULL,
        user_id VARCHAR(36) NOT NULL,
        price DECIMAL(12,2) NOT NULL,
        status VARCHAR(20) NOT NULL,
        qr_code VARCHAR(64) NOT NULL,
        checked_in BOOLEAN NOT NULL DEFAULT FALSE,
        checked_in_at TIMESTAMP NULL,
        purchase_date TIMESTAMP NOT NULL,
        UNIQUE KEY uq_qr_code (qr_code),
        INDEX idx_user (user_id),
        INDEX idx_event (event_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS payment_transactions (
        id VARCHAR(36) PRIMARY KEY,
        kind VARCHAR(20) NOT NULL,
        ticket_id VARCHAR(36) NULL,
        event_id VARCHAR(36) NULL,
        buyer_id VARCHAR(36) NULL,
        organizer_id VARCHAR(36) NOT NULL,
        amount DECIMAL(12,2) NOT NULL,
        currency CHAR(3) NOT NULL,
        status VARCHAR(20) NOT NULL,
        payment_reference VARCHAR(128) NOT NULL,
        is_free BOOLEAN NOT NULL DEFAULT FALSE,
        payment_date TIMESTAMP NOT NULL,
        UNIQUE KEY uq_payment_reference (payment_reference),
        INDEX idx_organizer_date (organizer_id, payment_date)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS organizer_wallets (
        organizer_id VARCHAR(36) PRIMARY KEY,
        balance DECIMAL(14,2) NOT NULL DEFAULT 0,
        last_updated TIMESTAMP NOT NULL
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS check_in_audit (
        id VARCHAR(36) PRIMARY KEY,
        ticket_id VARCHAR(36) NOT NULL,
        action VARCHAR(20) NOT NULL,
        actor_id VARCHAR(36) NOT NULL,
        reason VARCHAR(500) NOT NULL DEFAULT '',
        created_at TIMESTAMP NOT NULL,
        INDEX idx_ticket (ticket_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

func (s *MySQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.log.LogDatabase("MIGRATE", "mysql", fmt.Sprintf("%d tables ready", len(mysqlSchema)))
	return nil
}

// withTx runs fn inside a transaction and rolls back on any error.
func (s *MySQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("DATABASE", "Rollback failed: "+rbErr.Error())
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func (s *MySQLStore) SaveEvent(ctx context.Context, event *models.Event) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving event %s", event.ID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, organizer_id, title, venue, starts_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.OrganizerID, event.Title, event.Venue, event.StartsAt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event := &models.Event{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organizer_id, title, venue, starts_at, created_at FROM events WHERE id = ?`, id,
	).Scan(&event.ID, &event.OrganizerID, &event.Title, &event.Venue, &event.StartsAt, &event.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

const ticketTypeColumns = `id, event_id, name, price, quantity, sold, is_active, start_date, end_date, max_per_purchase, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicketType(row rowScanner) (*models.TicketType, error) {
	tt := &models.TicketType{}
	err := row.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Price, &tt.Quantity, &tt.Sold, &tt.IsActive,
		&tt.StartDate, &tt.EndDate, &tt.MaxPerPurchase, &tt.CreatedAt, &tt.UpdatedAt)
	return tt, err
}

func (s *MySQLStore) SaveTicketType(ctx context.Context, tt *models.TicketType) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving ticket type %s for event %s", tt.ID, tt.EventID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticket_types (`+ticketTypeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tt.ID, tt.EventID, tt.Name, tt.Price, tt.Quantity, tt.Sold, tt.IsActive,
		tt.StartDate, tt.EndDate, tt.MaxPerPurchase, tt.CreatedAt, tt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save ticket type: %w", err)
	}
	return nil
}

func (s *MySQLStore) UpdateTicketType(ctx context.Context, tt *models.TicketType) error {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Updating ticket type %s", tt.ID))

	res, err := s.db.ExecContext(ctx, `
    UPDATE ticket_types SET
        name = ?, price = ?, quantity = ?, is_active = ?, start_date = ?, end_date = ?,
        max_per_purchase = ?, updated_at = ?
    WHERE id = ? AND sold <= ?`,
		tt.Name, tt.Price, tt.Quantity, tt.IsActive, tt.StartDate, tt.EndDate,
		tt.MaxPerPurchase, tt.UpdatedAt, tt.ID, tt.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTicketType(ctx, tt.ID); err != nil {
			return err
		}
		return ErrQuantityBelowSold
	}
	return nil
}

func (s *MySQLStore) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	tt, err := scanTicketType(s.db.QueryRowContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}
	return tt, nil
}

func (s *MySQLStore) GetActiveTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	tt, err := scanTicketType(s.db.QueryRowContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = ? AND is_active = TRUE`, id))
	if err == sql.ErrNoRows {
		s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("Active ticket type %s not found", id))
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}
	return tt, nil
}

func (s *MySQLStore) ListTicketTypes(ctx context.Context, eventID string) ([]*models.TicketType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = ? ORDER BY created_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}
	defer rows.Close()

	var list []*models.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		list = append(list, tt)
	}
	return list, rows.Err()
}

func (s *MySQLStore) IssueTicket(ctx context.Context, ticket *models.Ticket, entry *models.PurchaseEntry) error {
	s.log.LogDatabase("TX", "mysql", fmt.Sprintf("Issuing ticket %s (ref %s)", ticket.ID, entry.Reference))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		// The ledger row goes first so a reference recorded by a concurrent
		// transaction surfaces as a duplicate, not as sold out.
		if err := insertTransaction(ctx, tx, entry.Transaction()); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE ticket_types SET sold = sold + 1 WHERE id = ? AND is_active = TRUE AND sold < quantity`,
			ticket.TicketTypeID)
		if err != nil {
			return fmt.Errorf("failed to increment sold: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSoldOut
		}

		_, err = tx.ExecContext(ctx, `
        INSERT INTO tickets (id, event_id, ticket_type_id, user_id, price, status, qr_code, checked_in, checked_in_at, purchase_date)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ticket.ID, ticket.EventID, ticket.TicketTypeID, ticket.UserID, ticket.Price, ticket.Status,
			ticket.QRCode, ticket.CheckedIn, ticket.CheckedInAt, ticket.PurchaseDate)
		if err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}

		if delta := entry.BalanceDelta(); !delta.IsZero() {
			_, err = tx.ExecContext(ctx, `
            INSERT INTO organizer_wallets (organizer_id, balance, last_updated) VALUES (?, ?, ?)
            ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance), last_updated = VALUES(last_updated)`,
				entry.OrganizerID, delta, entry.PaidAt)
			if err != nil {
				return fmt.Errorf("failed to update organizer balance: %w", err)
			}
		}
		return nil
	})
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *models.PaymentTransaction) error {
	_, err := tx.ExecContext(ctx, `
    INSERT INTO payment_transactions (`+transactionColumns+`)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Kind, t.TicketID, t.EventID, t.BuyerID, t.OrganizerID, t.Amount, t.Currency,
		t.Status, t.PaymentReference, t.IsFree, t.PaymentDate)
	if isDuplicate(err) {
		return ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, kind, ticket_id, event_id, buyer_id, organizer_id, amount, currency, status, payment_reference, is_free, payment_date`

func scanTransaction(row rowScanner) (*models.PaymentTransaction, error) {
	t := &models.PaymentTransaction{}
	err := row.Scan(&t.ID, &t.Kind, &t.TicketID, &t.EventID, &t.BuyerID, &t.OrganizerID, &t.Amount,
		&t.Currency, &t.Status, &t.PaymentReference, &t.IsFree, &t.PaymentDate)
	return t, err
}

func (s *MySQLStore) GetTransactionByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE payment_reference = ?`, reference))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

const ticketColumns = `id, event_id, ticket_type_id, user_id, price, status, qr_code, checked_in, checked_in_at, purchase_date`

func scanTicket(row rowScanner) (*models.Ticket, error) {
	t := &models.Ticket{}
	err := row.Scan(&t.ID, &t.EventID, &t.TicketTypeID, &t.UserID, &t.Price, &t.Status, &t.QRCode,
		&t.CheckedIn, &t.CheckedInAt, &t.PurchaseDate)
	return t, err
}

func (s *MySQLStore) getTicketWhere(ctx context.Context, column, value string) (*models.Ticket, error) {
	t, err := scanTicket(s.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE `+column+` = ?`, value))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return t, nil
}

func (s *MySQLStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.getTicketWhere(ctx, "id", id)
}

func (s *MySQLStore) GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	return s.getTicketWhere(ctx, "qr_code", qrCode)
}

func (s *MySQLStore) ListTicketsByUser(ctx context.Context, userID string) ([]*models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? ORDER BY purchase_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var list []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (s *MySQLStore) ApplyCheckIn(ctx context.Context, ticketID string, checkedIn bool, at *time.Time, audit *models.CheckInAudit) error {
	s.log.LogDatabase("TX", "mysql", fmt.Sprintf("Check-in %s on ticket %s", audit.Action, ticketID))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tickets SET checked_in = ?, checked_in_at = ? WHERE id = ? AND checked_in = ?`,
			checkedIn, at, ticketID, !checkedIn)
		if err != nil {
			return fmt.Errorf("failed to update check-in: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStaleCheckIn
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO check_in_audit (id, ticket_id, action, actor_id, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			audit.ID, audit.TicketID, audit.Action, audit.ActorID, audit.Reason, audit.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to write check-in audit: %w", err)
		}
		return nil
	})
}

func (s *MySQLStore) ListCheckInAudit(ctx context.Context, ticketID string) ([]*models.CheckInAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticket_id, action, actor_id, reason, created_at FROM check_in_audit WHERE ticket_id = ? ORDER BY created_at`,
		ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-in audit: %w", err)
	}
	defer rows.Close()

	list := []*models.CheckInAudit{}
	for rows.Next() {
		a := &models.CheckInAudit{}
		if err := rows.Scan(&a.ID, &a.TicketID, &a.Action, &a.ActorID, &a.Reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check-in audit: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *MySQLStore) GetWallet(ctx context.Context, organizerID string) (*models.OrganizerWallet, error) {
	w := &models.OrganizerWallet{OrganizerID: organizerID}
	err := s.db.QueryRowContext(ctx,
		`SELECT balance, last_updated FROM organizer_wallets WHERE organizer_id = ?`, organizerID,
	).Scan(&w.Balance, &w.LastUpdated)
	if err == sql.ErrNoRows {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (s *MySQLStore) Withdraw(ctx context.Context, entry *models.WithdrawalEntry) (*models.OrganizerWallet, error) {
	s.log.LogDatabase("TX", "mysql", fmt.Sprintf("Withdrawal %s for organizer %s", entry.Reference, entry.OrganizerID))

	wallet := &models.OrganizerWallet{OrganizerID: entry.OrganizerID}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE organizer_wallets SET balance = balance - ?, last_updated = ? WHERE organizer_id = ? AND balance >= ?`,
			entry.Amount, entry.RequestedAt, entry.OrganizerID, entry.Amount)
		if err != nil {
			return fmt.Errorf("failed to debit wallet: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrInsufficientFunds
		}
		if err := insertTransaction(ctx, tx, entry.Transaction()); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT balance, last_updated FROM organizer_wallets WHERE organizer_id = ?`, entry.OrganizerID,
		).Scan(&wallet.Balance, &wallet.LastUpdated)
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *MySQLStore) ListLedger(ctx context.Context, organizerID string, limit, offset int) ([]*models.PaymentTransaction, error) {
	s.log.LogDatabase("SELECT", "mysql", fmt.Sprintf("Listing ledger for organizer %s (limit: %d, offset: %d)", organizerID, limit, offset))

	rows, err := s.db.QueryContext(ctx, `
    SELECT `+transactionColumns+`
    FROM payment_transactions
    WHERE organizer_id = ?
    ORDER BY payment_date DESC
    LIMIT ? OFFSET ?`, organizerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var list []*models.PaymentTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (s *MySQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}
