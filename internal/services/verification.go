package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"event-ticketing/internal/gateway"
	"event-ticketing/internal/models"
	"event-ticketing/internal/monitoring"
	"event-ticketing/internal/storage"
	"event-ticketing/internal/utils"
)

// VerifyPayment confirms a gateway reference and issues its ticket exactly
// once. A reference that already has a ledger row returns the stored ticket
// without calling the gateway.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string) (*models.VerifyResponse, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}

	if res, err := s.existingResult(ctx, reference); res != nil || err != nil {
		return res, err
	}

	owner := utils.GenerateUUID()
	acquired, err := s.lock.AcquireVerification(ctx, reference, owner)
	if err != nil {
		// The unique reference constraint still prevents double issuance.
		s.log.Warn("REDIS", fmt.Sprintf("Verification lock unavailable for %s: %v", reference, err))
	} else if !acquired {
		s.log.LogPayment("LOCKED", reference, "Concurrent verification in progress")
		return nil, ErrVerificationInProgress
	} else {
		defer func() {
			if err := s.lock.ReleaseVerification(context.Background(), reference, owner); err != nil {
				s.log.Warn("REDIS", fmt.Sprintf("Failed to release verification lock for %s: %v", reference, err))
			}
		}()
		if res, err := s.existingResult(ctx, reference); res != nil || err != nil {
			return res, err
		}
	}

	start := time.Now()
	vr, err := s.gateway.Verify(ctx, reference)
	monitoring.ObserveGateway(s.gateway.Name(), "verify", start)
	if err != nil {
		monitoring.PaymentVerifications.WithLabelValues(s.gateway.Name(), "error").Inc()
		s.log.Error("PAYMENT", fmt.Sprintf("Gateway verify failed for %s: %v", reference, err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if !vr.Succeeded() {
		monitoring.PaymentVerifications.WithLabelValues(s.gateway.Name(), string(vr.Status)).Inc()
		s.log.LogPayment("NOT_PAID", reference, fmt.Sprintf("Gateway status %s: %s", vr.Status, vr.Message))
		s.publish(models.EventPaymentFailed, reference, vr.Metadata[models.MetaEventID], vr)
		return &models.VerifyResponse{Success: false, Status: vr.Status, Message: vr.Message}, nil
	}

	return s.issuePaid(ctx, reference, vr)
}

// VerifyForBuyer is VerifyPayment on behalf of a signed-in caller, who may
// only see tickets issued to them.
func (s *PaymentService) VerifyForBuyer(ctx context.Context, session models.Session, reference string) (*models.VerifyResponse, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	res, err := s.VerifyPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if res.Ticket != nil && res.Ticket.UserID != session.UserID && session.Role != models.RoleAdmin {
		s.log.LogSecurity("VERIFY_FOREIGN", fmt.Sprintf("%s verified reference %s owned by %s", session.UserID, reference, res.Ticket.UserID))
		return nil, ErrForbidden
	}
	return res, nil
}

func (s *PaymentService) issuePaid(ctx context.Context, reference string, vr *gateway.VerifyResult) (*models.VerifyResponse, error) {
	userID := vr.Metadata[models.MetaUserID]
	ticketTypeID := vr.Metadata[models.MetaTicketTypeID]
	if userID == "" || ticketTypeID == "" {
		s.log.Error("PAYMENT", fmt.Sprintf("Reference %s paid but metadata lacks userId/ticketTypeId", reference))
		return nil, ErrIncompleteMetadata
	}

	tt, err := s.store.GetTicketType(ctx, ticketTypeID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket type: %w", err)
	}

	event, err := s.store.GetEvent(ctx, tt.EventID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	organizerID := vr.Metadata[models.MetaOrganizerID]
	if organizerID == "" {
		organizerID = event.OrganizerID
	}
	currency := vr.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	paidAt := vr.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	paidAt = paidAt.UTC()

	ticket := newTicket(tt, userID, vr.Amount, paidAt)
	entry := &models.PurchaseEntry{
		ID:          utils.GenerateUUID(),
		TicketID:    ticket.ID,
		EventID:     tt.EventID,
		BuyerID:     userID,
		OrganizerID: organizerID,
		Amount:      vr.Amount,
		Currency:    currency,
		Reference:   reference,
		Status:      models.TransactionCompleted,
		PaidAt:      paidAt,
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	err = s.store.IssueTicket(ctx, ticket, entry)
	switch {
	case errors.Is(err, storage.ErrDuplicateReference):
		s.log.LogPayment("DUPLICATE", reference, "Reference recorded concurrently, returning stored ticket")
		res, lookupErr := s.existingResult(ctx, reference)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if res == nil {
			return nil, ErrTransactionNotFound
		}
		return res, nil
	case errors.Is(err, storage.ErrSoldOut):
		// A concurrent verification of this reference may have taken the last seat.
		res, lookupErr := s.existingResult(ctx, reference)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if res != nil {
			s.log.LogPayment("DUPLICATE", reference, "Last seat went to this reference concurrently, returning stored ticket")
			return res, nil
		}
		// Paid but the last seat went elsewhere; the charge must be refunded.
		monitoring.PaymentVerifications.WithLabelValues(s.gateway.Name(), "sold_out").Inc()
		s.log.Error("PAYMENT", fmt.Sprintf("Reference %s paid %s %s but %s sold out, refund required", reference, vr.Amount, currency, tt.ID))
		s.publish(models.EventPaymentNeedsRefund, reference, tt.EventID, map[string]interface{}{
			"reference": reference, "amount": vr.Amount, "currency": currency,
			"user_id": userID, "ticket_type_id": tt.ID, "gateway": s.gateway.Name(),
		})
		return nil, ErrSoldOut
	case err != nil:
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	monitoring.PaymentVerifications.WithLabelValues(s.gateway.Name(), "success").Inc()
	s.log.LogTicket("ISSUED", ticket.ID, fmt.Sprintf("Paid ticket for %s, ref %s, %s %s", userID, reference, vr.Amount, currency))
	s.afterIssue(ticket, entry, tt, event, vr.Metadata[models.MetaEmail], "paid")

	return &models.VerifyResponse{
		Success:     true,
		Status:      models.StatusCompleted,
		Ticket:      ticket,
		Transaction: entry.Transaction(),
	}, nil
}

// existingResult returns (nil, nil) when the reference has no ledger row.
func (s *PaymentService) existingResult(ctx context.Context, reference string) (*models.VerifyResponse, error) {
	tx, err := s.store.GetTransactionByReference(ctx, reference)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up reference: %w", err)
	}
	if tx.Kind != models.KindPurchase || tx.TicketID == nil {
		return nil, fmt.Errorf("%w: reference belongs to a %s entry", ErrInvalidRequest, tx.Kind)
	}

	ticket, err := s.store.GetTicket(ctx, *tx.TicketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket for reference %s: %w", reference, err)
	}

	s.log.LogPayment("ALREADY_VERIFIED", reference, fmt.Sprintf("Returning ticket %s", ticket.ID))
	return &models.VerifyResponse{
		Success:     true,
		Status:      models.StatusCompleted,
		Duplicate:   true,
		Ticket:      ticket,
		Transaction: tx,
	}, nil
}

// AcceptWebhook verifies a gateway notification and queues its reference
// for the webhook consumer. Without a live queue it verifies inline.
func (s *PaymentService) AcceptWebhook(ctx context.Context, payload []byte, header http.Header) error {
	evt, err := s.gateway.ParseWebhook(payload, header)
	if errors.Is(err, gateway.ErrIgnoredEvent) {
		return nil
	}
	if err != nil {
		return err
	}
	if !evt.Success {
		s.log.LogPayment("WEBHOOK", evt.Reference, fmt.Sprintf("%s without successful charge, ignored", evt.Type))
		return nil
	}

	msg := &models.WebhookMessage{
		Gateway:   s.gateway.Name(),
		Reference: evt.Reference,
		Event:     evt.Type,
		Received:  s.now().UTC(),
	}

	if s.queue.MockMode() {
		return s.HandleWebhookMessage(ctx, msg)
	}
	if err := s.queue.EnqueueWebhook(msg); err != nil {
		return fmt.Errorf("failed to queue webhook: %w", err)
	}
	s.log.LogPayment("WEBHOOK_QUEUED", evt.Reference, evt.Type)
	return nil
}

// HandleWebhookMessage is the Kafka consumer callback. Outcomes that a retry
// cannot change are swallowed so the message is committed.
func (s *PaymentService) HandleWebhookMessage(ctx context.Context, msg *models.WebhookMessage) error {
	res, err := s.VerifyPayment(ctx, msg.Reference)
	switch {
	case err == nil:
		s.log.LogPayment("WEBHOOK_DONE", msg.Reference, fmt.Sprintf("status %s, duplicate %t", res.Status, res.Duplicate))
		return nil
	case errors.Is(err, ErrVerificationInProgress),
		errors.Is(err, ErrSoldOut),
		errors.Is(err, ErrIncompleteMetadata),
		errors.Is(err, ErrTicketTypeNotFound):
		s.log.LogPayment("WEBHOOK_SKIPPED", msg.Reference, err.Error())
		return nil
	default:
		return err
	}
}
