package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"event-ticketing/internal/config"
	"event-ticketing/internal/gateway"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/mailer"
	"event-ticketing/internal/models"
	"event-ticketing/internal/monitoring"
	"event-ticketing/internal/storage"
	"event-ticketing/internal/utils"
)

// PaymentService runs the purchase flow: validation, free issuance, gateway
// initiation, verification and webhook intake.
type PaymentService struct {
	broadcaster
	store   storage.Store
	gateway gateway.Gateway
	queue   WebhookQueue
	mail    ReceiptMailer
	lock    VerificationLock
	cfg     config.PaymentConfig
}

func NewPaymentService(
	store storage.Store,
	gw gateway.Gateway,
	events EventPublisher,
	queue WebhookQueue,
	notifier Notifier,
	mail ReceiptMailer,
	lock VerificationLock,
	cfg config.PaymentConfig,
	log *logger.Logger,
) *PaymentService {
	return &PaymentService{
		broadcaster: broadcaster{events: events, notifier: notifier, log: log, now: time.Now},
		store:       store,
		gateway:     gw,
		queue:       queue,
		mail:        mail,
		lock:        lock,
		cfg:         cfg,
	}
}

// ValidateTicketType applies the purchase rules in order: sold out, price,
// sales window. tt must already be known to exist and be active.
func ValidateTicketType(tt *models.TicketType, amount decimal.Decimal, now time.Time) error {
	if tt.SoldOut() {
		return ErrSoldOut
	}
	if !amount.Equal(tt.Price) {
		return ErrPriceMismatch
	}
	if !tt.OnSale(now) {
		return ErrSalesClosed
	}
	return nil
}

func (s *PaymentService) ProcessPayment(ctx context.Context, session models.Session, req *models.PaymentRequest) (*models.PaymentResponse, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	if req.Amount == nil || req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must be zero or positive", ErrInvalidRequest)
	}
	if req.UserID != "" && req.UserID != session.UserID {
		s.log.LogSecurity("USER_MISMATCH", fmt.Sprintf("Session %s sent userId %s", session.UserID, req.UserID))
		return nil, ErrUserMismatch
	}

	amount := *req.Amount
	s.log.LogPayment("PROCESS", req.TicketTypeID, fmt.Sprintf("Purchase by %s, amount %s", session.UserID, amount))

	tt, err := s.store.GetActiveTicketType(ctx, req.TicketTypeID)
	if errors.Is(err, storage.ErrNotFound) {
		monitoring.PurchaseRejections.WithLabelValues("not_found").Inc()
		return nil, ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket type: %w", err)
	}
	if tt.EventID != req.EventID {
		return nil, ErrEventMismatch
	}
	if err := ValidateTicketType(tt, amount, s.now()); err != nil {
		monitoring.PurchaseRejections.WithLabelValues(rejectionReason(err)).Inc()
		s.log.LogPayment("REJECTED", tt.ID, err.Error())
		return nil, err
	}

	event, err := s.store.GetEvent(ctx, tt.EventID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = s.cfg.CallbackURL
	}

	if amount.IsZero() {
		return s.issueFree(ctx, session, req.Email, tt, event, callbackURL)
	}
	return s.initiate(ctx, session, req, tt, event, callbackURL)
}

func (s *PaymentService) issueFree(ctx context.Context, session models.Session, email string, tt *models.TicketType, event *models.Event, callbackURL string) (*models.PaymentResponse, error) {
	now := s.now().UTC()
	ticket := newTicket(tt, session.UserID, decimal.Zero, now)
	entry := &models.PurchaseEntry{
		ID:          utils.GenerateUUID(),
		TicketID:    ticket.ID,
		EventID:     tt.EventID,
		BuyerID:     session.UserID,
		OrganizerID: event.OrganizerID,
		Amount:      decimal.Zero,
		Currency:    s.cfg.Currency,
		Reference:   utils.GenerateFreeReference(),
		IsFree:      true,
		Status:      models.TransactionCompleted,
		PaidAt:      now,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.IssueTicket(ctx, ticket, entry); err != nil {
		if errors.Is(err, storage.ErrSoldOut) {
			return nil, ErrSoldOut
		}
		return nil, fmt.Errorf("failed to issue free ticket: %w", err)
	}

	s.log.LogTicket("ISSUED", ticket.ID, fmt.Sprintf("Free ticket for %s on %s", session.UserID, tt.ID))
	s.afterIssue(ticket, entry, tt, event, email, "free")

	return &models.PaymentResponse{Success: true, Ticket: ticket, RedirectURL: callbackURL}, nil
}

func (s *PaymentService) initiate(ctx context.Context, session models.Session, req *models.PaymentRequest, tt *models.TicketType, event *models.Event, callbackURL string) (*models.PaymentResponse, error) {
	metadata := make(map[string]string, len(req.Metadata)+5)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata[models.MetaUserID] = session.UserID
	metadata[models.MetaEventID] = tt.EventID
	metadata[models.MetaTicketTypeID] = tt.ID
	metadata[models.MetaOrganizerID] = event.OrganizerID
	metadata[models.MetaEmail] = req.Email

	start := time.Now()
	res, err := s.gateway.Initialize(ctx, &gateway.InitializeRequest{
		Reference:   utils.GeneratePaymentReference(),
		Email:       req.Email,
		Amount:      tt.Price,
		Currency:    s.cfg.Currency,
		Description: fmt.Sprintf("%s - %s", event.Title, tt.Name),
		CallbackURL: callbackURL,
		Metadata:    metadata,
	})
	monitoring.ObserveGateway(s.gateway.Name(), "initialize", start)
	if err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Gateway initialize failed for %s: %v", tt.ID, err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	s.log.LogPayment("INITIALIZED", res.Reference, fmt.Sprintf("Redirecting %s to %s", session.UserID, s.gateway.Name()))
	return &models.PaymentResponse{Success: true, PaymentURL: res.AuthorizationURL, Reference: res.Reference}, nil
}

// afterIssue runs once the issuance transaction has committed.
func (s *PaymentService) afterIssue(ticket *models.Ticket, entry *models.PurchaseEntry, tt *models.TicketType, event *models.Event, email, path string) {
	monitoring.TicketsIssued.WithLabelValues(path).Inc()

	s.publish(models.EventTicketIssued, ticket.ID, ticket.EventID, map[string]interface{}{"ticket": ticket, "transaction": entry.Transaction()})
	s.eventChanged(ticket.EventID, "INSERT", "tickets", ticket.ID)
	s.eventChanged(ticket.EventID, "UPDATE", "ticket_types", tt.ID)
	if !entry.IsFree {
		s.publish(models.EventPaymentCompleted, entry.Reference, ticket.EventID, entry.Transaction())
		s.organizerChanged(entry.OrganizerID, "UPDATE", "organizer_wallets", entry.OrganizerID)
	}

	receipt := &mailer.Receipt{
		EventTitle: event.Title,
		TicketType: tt.Name,
		TicketID:   ticket.ID,
		QRCode:     ticket.QRCode,
		Amount:     entry.Amount,
		Currency:   entry.Currency,
		Reference:  entry.Reference,
		Free:       entry.IsFree,
	}
	if err := s.mail.SendTicketReceipt(email, receipt); err != nil {
		s.log.Warn("MAIL", fmt.Sprintf("Receipt for ticket %s not sent: %v", ticket.ID, err))
	}
}

func newTicket(tt *models.TicketType, userID string, price decimal.Decimal, now time.Time) *models.Ticket {
	return &models.Ticket{
		ID:           utils.GenerateUUID(),
		EventID:      tt.EventID,
		TicketTypeID: tt.ID,
		UserID:       userID,
		Price:        price,
		Status:       models.TicketActive,
		QRCode:       utils.GenerateQRCode(),
		PurchaseDate: now,
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrSoldOut):
		return "sold_out"
	case errors.Is(err, ErrPriceMismatch):
		return "price_mismatch"
	case errors.Is(err, ErrSalesClosed):
		return "sales_closed"
	default:
		return "other"
	}
}
