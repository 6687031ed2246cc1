package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
	"event-ticketing/internal/monitoring"
	"event-ticketing/internal/storage"
	"event-ticketing/internal/utils"
)

// TicketService owns ticket lookups and the check-in state machine.
type TicketService struct {
	broadcaster
	store storage.Store
}

func NewTicketService(store storage.Store, events EventPublisher, notifier Notifier, log *logger.Logger) *TicketService {
	return &TicketService{
		broadcaster: broadcaster{events: events, notifier: notifier, log: log, now: time.Now},
		store:       store,
	}
}

// CheckIn redeems the ticket behind a scanned QR code. On ErrAlreadyCheckedIn
// the returned ticket carries the original check-in time.
func (s *TicketService) CheckIn(ctx context.Context, session models.Session, req *models.CheckInRequest) (*models.Ticket, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}

	event, err := s.loadEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !canManage(session, event) {
		s.log.LogSecurity("CHECKIN_FORBIDDEN", fmt.Sprintf("%s tried to scan for event %s", session.UserID, event.ID))
		return nil, ErrForbidden
	}

	ticket, err := s.store.GetTicketByQRCode(ctx, req.QRCode)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket.EventID != event.ID {
		return nil, ErrWrongEvent
	}

	if _, err := ticket.Transition(models.ActionCheckIn); err != nil {
		return ticket, err
	}

	now := s.now().UTC()
	audit := &models.CheckInAudit{
		ID:        utils.GenerateUUID(),
		TicketID:  ticket.ID,
		Action:    models.ActionCheckIn,
		ActorID:   session.UserID,
		CreatedAt: now,
	}
	if err := s.store.ApplyCheckIn(ctx, ticket.ID, true, &now, audit); err != nil {
		if errors.Is(err, storage.ErrStaleCheckIn) {
			current, getErr := s.store.GetTicket(ctx, ticket.ID)
			if getErr != nil {
				return nil, getErr
			}
			return current, ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("failed to check in: %w", err)
	}

	ticket.CheckedIn = true
	ticket.CheckedInAt = &now

	monitoring.CheckIns.WithLabelValues(string(models.ActionCheckIn)).Inc()
	s.log.LogTicket("CHECKED_IN", ticket.ID, fmt.Sprintf("by %s at event %s", session.UserID, event.ID))
	s.publish(models.EventTicketCheckedIn, ticket.ID, ticket.EventID, audit)
	s.eventChanged(ticket.EventID, "UPDATE", "tickets", ticket.ID)
	return ticket, nil
}

// RevokeCheckIn undoes a check-in. Only the event's organizer may do it and a
// reason is mandatory; the audit trail keeps both transitions.
func (s *TicketService) RevokeCheckIn(ctx context.Context, session models.Session, ticketID, reason string) (*models.Ticket, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidRequest)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if !canManage(session, event) {
		return nil, ErrForbidden
	}

	if _, err := ticket.Transition(models.ActionRevoke); err != nil {
		return ticket, err
	}

	audit := &models.CheckInAudit{
		ID:        utils.GenerateUUID(),
		TicketID:  ticket.ID,
		Action:    models.ActionRevoke,
		ActorID:   session.UserID,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.ApplyCheckIn(ctx, ticket.ID, false, nil, audit); err != nil {
		if errors.Is(err, storage.ErrStaleCheckIn) {
			return ticket, ErrNotCheckedIn
		}
		return nil, fmt.Errorf("failed to revoke check-in: %w", err)
	}

	ticket.CheckedIn = false
	ticket.CheckedInAt = nil

	monitoring.CheckIns.WithLabelValues(string(models.ActionRevoke)).Inc()
	s.log.LogTicket("CHECKIN_REVOKED", ticket.ID, fmt.Sprintf("by %s: %s", session.UserID, reason))
	s.publish(models.EventCheckInRevoked, ticket.ID, ticket.EventID, audit)
	s.eventChanged(ticket.EventID, "UPDATE", "tickets", ticket.ID)
	return ticket, nil
}

// CheckInHistory is visible to the ticket holder and the event's organizer.
func (s *TicketService) CheckInHistory(ctx context.Context, session models.Session, ticketID string) ([]*models.CheckInAudit, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != session.UserID {
		event, err := s.loadEvent(ctx, ticket.EventID)
		if err != nil {
			return nil, err
		}
		if !canManage(session, event) {
			return nil, ErrForbidden
		}
	}
	return s.store.ListCheckInAudit(ctx, ticketID)
}

func (s *TicketService) MyTickets(ctx context.Context, session models.Session) ([]*models.Ticket, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	tickets, err := s.store.ListTicketsByUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) loadTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	return ticket, nil
}

func (s *TicketService) loadEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return event, nil
}
