package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
	"event-ticketing/internal/storage"
	"event-ticketing/internal/utils"
)

// CatalogService manages events and their ticket types.
type CatalogService struct {
	broadcaster
	store storage.Store
}

func NewCatalogService(store storage.Store, events EventPublisher, notifier Notifier, log *logger.Logger) *CatalogService {
	return &CatalogService{
		broadcaster: broadcaster{events: events, notifier: notifier, log: log, now: time.Now},
		store:       store,
	}
}

func (s *CatalogService) CreateEvent(ctx context.Context, session models.Session, req *models.CreateEventRequest) (*models.Event, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	if session.Role != models.RoleOrganizer && session.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}

	event := &models.Event{
		ID:          utils.GenerateUUID(),
		OrganizerID: session.UserID,
		Title:       strings.TrimSpace(req.Title),
		Venue:       req.Venue,
		StartsAt:    req.StartsAt.UTC(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.SaveEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.log.Info("CATALOG", fmt.Sprintf("Event %s created by %s", event.ID, session.UserID))
	s.publish(models.EventEventCreated, event.ID, event.ID, event)
	return event, nil
}

func (s *CatalogService) GetEvent(ctx context.Context, id string) (*models.EventWithTicketTypes, error) {
	event, err := s.store.GetEvent(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	types, err := s.store.ListTicketTypes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}
	if types == nil {
		types = []*models.TicketType{}
	}
	return &models.EventWithTicketTypes{Event: event, TicketTypes: types}, nil
}

func (s *CatalogService) CreateTicketType(ctx context.Context, session models.Session, eventID string, req *models.TicketTypeRequest) (*models.TicketType, error) {
	if err := validateTicketTypeRequest(req); err != nil {
		return nil, err
	}
	event, err := s.managedEvent(ctx, session, eventID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tt := &models.TicketType{
		ID:             utils.GenerateUUID(),
		EventID:        event.ID,
		Name:           strings.TrimSpace(req.Name),
		Price:          req.Price,
		Quantity:       req.Quantity,
		IsActive:       true,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		MaxPerPurchase: req.MaxPerPurchase,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveTicketType(ctx, tt); err != nil {
		return nil, fmt.Errorf("failed to create ticket type: %w", err)
	}

	s.changed(tt, "INSERT")
	return tt, nil
}

// UpdateTicketType edits name, price, quantity and the sales window. The
// sold count is never taken from the request.
func (s *CatalogService) UpdateTicketType(ctx context.Context, session models.Session, id string, req *models.TicketTypeRequest) (*models.TicketType, error) {
	if err := validateTicketTypeRequest(req); err != nil {
		return nil, err
	}
	tt, err := s.managedTicketType(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if req.Quantity < tt.Sold {
		return nil, ErrInvalidQuantity
	}

	tt.Name = strings.TrimSpace(req.Name)
	tt.Price = req.Price
	tt.Quantity = req.Quantity
	tt.StartDate = req.StartDate
	tt.EndDate = req.EndDate
	tt.MaxPerPurchase = req.MaxPerPurchase
	tt.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTicketType(ctx, tt); err != nil {
		if errors.Is(err, storage.ErrQuantityBelowSold) {
			return nil, ErrInvalidQuantity
		}
		return nil, fmt.Errorf("failed to update ticket type: %w", err)
	}

	s.changed(tt, "UPDATE")
	return s.store.GetTicketType(ctx, id)
}

// ToggleTicketType soft-enables or soft-disables a ticket type.
func (s *CatalogService) ToggleTicketType(ctx context.Context, session models.Session, id string) (*models.TicketType, error) {
	tt, err := s.managedTicketType(ctx, session, id)
	if err != nil {
		return nil, err
	}

	tt.IsActive = !tt.IsActive
	tt.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTicketType(ctx, tt); err != nil {
		return nil, fmt.Errorf("failed to toggle ticket type: %w", err)
	}

	s.log.Info("CATALOG", fmt.Sprintf("Ticket type %s active=%t", tt.ID, tt.IsActive))
	s.changed(tt, "UPDATE")
	return tt, nil
}

func (s *CatalogService) changed(tt *models.TicketType, changeType string) {
	s.publish(models.EventTicketTypeChanged, tt.ID, tt.EventID, tt)
	s.eventChanged(tt.EventID, changeType, "ticket_types", tt.ID)
}

func (s *CatalogService) managedEvent(ctx context.Context, session models.Session, eventID string) (*models.Event, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	event, err := s.store.GetEvent(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if !canManage(session, event) {
		return nil, ErrForbidden
	}
	return event, nil
}

func (s *CatalogService) managedTicketType(ctx context.Context, session models.Session, id string) (*models.TicketType, error) {
	if session.IsZero() {
		return nil, ErrUnauthenticated
	}
	tt, err := s.store.GetTicketType(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket type: %w", err)
	}
	if _, err := s.managedEvent(ctx, session, tt.EventID); err != nil {
		return nil, err
	}
	return tt, nil
}

func validateTicketTypeRequest(req *models.TicketTypeRequest) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case req.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidRequest)
	case req.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	case req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate):
		return fmt.Errorf("%w: end_date is before start_date", ErrInvalidRequest)
	case req.MaxPerPurchase != nil && *req.MaxPerPurchase < 1:
		return fmt.Errorf("%w: max_per_purchase must be at least 1", ErrInvalidRequest)
	}
	return nil
}
