package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

// PostgresStore is the gorm-backed Store used when DB_DRIVER=postgres.
type PostgresStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgresStore, error) {
	log.LogDatabase("CONNECT", "postgres", fmt.Sprintf("Connecting to Postgres at %s:%s", cfg.Host, cfg.Port))

	dsn := cfg.URL
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	store := &PostgresStore{db: db, log: log}
	if cfg.AutoMigrate {
		if err := store.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.LogDatabase("SUCCESS", "postgres", "Postgres connection established")
	return store, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.Event{},
		&models.TicketType{},
		&models.Ticket{},
		&models.PaymentTransaction{},
		&models.OrganizerWallet{},
		&models.CheckInAudit{},
	)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Exec(
		`DO $$ BEGIN
            ALTER TABLE ticket_types ADD CONSTRAINT chk_sold CHECK (sold <= quantity);
        EXCEPTION WHEN duplicate_object THEN NULL; END $$`).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) SaveEvent(ctx context.Context, event *models.Event) error {
	s.log.LogDatabase("INSERT", "postgres", fmt.Sprintf("Saving event %s", event.ID))
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (s *PostgresStore) SaveTicketType(ctx context.Context, tt *models.TicketType) error {
	s.log.LogDatabase("INSERT", "postgres", fmt.Sprintf("Saving ticket type %s for event %s", tt.ID, tt.EventID))
	if err := s.db.WithContext(ctx).Create(tt).Error; err != nil {
		return fmt.Errorf("failed to save ticket type: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTicketType(ctx context.Context, tt *models.TicketType) error {
	s.log.LogDatabase("UPDATE", "postgres", fmt.Sprintf("Updating ticket type %s", tt.ID))

	res := s.db.WithContext(ctx).Model(&models.TicketType{}).
		Where("id = ? AND sold <= ?", tt.ID, tt.Quantity).
		Updates(map[string]interface{}{
			"name":             tt.Name,
			"price":            tt.Price,
			"quantity":         tt.Quantity,
			"is_active":        tt.IsActive,
			"start_date":       tt.StartDate,
			"end_date":         tt.EndDate,
			"max_per_purchase": tt.MaxPerPurchase,
			"updated_at":       tt.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update ticket type: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetTicketType(ctx, tt.ID); err != nil {
			return err
		}
		return ErrQuantityBelowSold
	}
	return nil
}

func (s *PostgresStore) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	if err := s.db.WithContext(ctx).First(&tt, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tt, nil
}

func (s *PostgresStore) GetActiveTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	if err := s.db.WithContext(ctx).First(&tt, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return nil, notFound(err)
	}
	return &tt, nil
}

func (s *PostgresStore) ListTicketTypes(ctx context.Context, eventID string) ([]*models.TicketType, error) {
	var list []*models.TicketType
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at").Find(&list).Error
	return list, err
}

func (s *PostgresStore) IssueTicket(ctx context.Context, ticket *models.Ticket, entry *models.PurchaseEntry) error {
	s.log.LogDatabase("TX", "postgres", fmt.Sprintf("Issuing ticket %s (ref %s)", ticket.ID, entry.Reference))

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Ledger row first: a concurrent insert of the same reference waits on
		// the unique index and then fails as a duplicate.
		if err := tx.Create(entry.Transaction()).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReference
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		res := tx.Model(&models.TicketType{}).
			Where("id = ? AND is_active = ? AND sold < quantity", ticket.TicketTypeID, true).
			UpdateColumn("sold", gorm.Expr("sold + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to increment sold: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSoldOut
		}

		if err := tx.Create(ticket).Error; err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}

		if delta := entry.BalanceDelta(); !delta.IsZero() {
			wallet := &models.OrganizerWallet{OrganizerID: entry.OrganizerID, Balance: delta, LastUpdated: entry.PaidAt}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "organizer_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"balance":      gorm.Expr("organizer_wallets.balance + EXCLUDED.balance"),
					"last_updated": gorm.Expr("EXCLUDED.last_updated"),
				}),
			}).Create(wallet).Error
			if err != nil {
				return fmt.Errorf("failed to update organizer balance: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetTransactionByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	if err := s.db.WithContext(ctx).First(&t, "payment_reference = ?", reference).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *PostgresStore) GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.db.WithContext(ctx).First(&t, "qr_code = ?", qrCode).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTicketsByUser(ctx context.Context, userID string) ([]*models.Ticket, error) {
	var list []*models.Ticket
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("purchase_date DESC").Find(&list).Error
	return list, err
}

func (s *PostgresStore) ApplyCheckIn(ctx context.Context, ticketID string, checkedIn bool, at *time.Time, audit *models.CheckInAudit) error {
	s.log.LogDatabase("TX", "postgres", fmt.Sprintf("Check-in %s on ticket %s", audit.Action, ticketID))

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Ticket{}).
			Where("id = ? AND checked_in = ?", ticketID, !checkedIn).
			Updates(map[string]interface{}{"checked_in": checkedIn, "checked_in_at": at})
		if res.Error != nil {
			return fmt.Errorf("failed to update check-in: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleCheckIn
		}
		if err := tx.Create(audit).Error; err != nil {
			return fmt.Errorf("failed to write check-in audit: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ListCheckInAudit(ctx context.Context, ticketID string) ([]*models.CheckInAudit, error) {
	list := []*models.CheckInAudit{}
	err := s.db.WithContext(ctx).Where("ticket_id = ?", ticketID).Order("created_at").Find(&list).Error
	return list, err
}

func (s *PostgresStore) GetWallet(ctx context.Context, organizerID string) (*models.OrganizerWallet, error) {
	var w models.OrganizerWallet
	err := s.db.WithContext(ctx).First(&w, "organizer_id = ?", organizerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.OrganizerWallet{OrganizerID: organizerID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

func (s *PostgresStore) Withdraw(ctx context.Context, entry *models.WithdrawalEntry) (*models.OrganizerWallet, error) {
	s.log.LogDatabase("TX", "postgres", fmt.Sprintf("Withdrawal %s for organizer %s", entry.Reference, entry.OrganizerID))

	var wallet models.OrganizerWallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OrganizerWallet{}).
			Where("organizer_id = ? AND balance >= ?", entry.OrganizerID, entry.Amount).
			Updates(map[string]interface{}{
				"balance":      gorm.Expr("balance - ?", entry.Amount),
				"last_updated": entry.RequestedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to debit wallet: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}
		if err := tx.Create(entry.Transaction()).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReference
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return tx.First(&wallet, "organizer_id = ?", entry.OrganizerID).Error
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *PostgresStore) ListLedger(ctx context.Context, organizerID string, limit, offset int) ([]*models.PaymentTransaction, error) {
	var list []*models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("payment_date DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	s.log.LogDatabase("CLOSE", "postgres", "Closing Postgres connection")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
