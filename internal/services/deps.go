package services

import (
	"context"
	"fmt"
	"time"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/mailer"
	"event-ticketing/internal/models"
)

// EventPublisher is satisfied by kafka.Producer.
type EventPublisher interface {
	Publish(event *models.DomainEvent) error
}

// WebhookQueue is satisfied by kafka.Producer. In mock mode webhooks are
// verified inline instead of queued.
type WebhookQueue interface {
	EnqueueWebhook(msg *models.WebhookMessage) error
	MockMode() bool
}

// Notifier is satisfied by realtime.Notifier.
type Notifier interface {
	EventChanged(eventID string, change *models.ChangeNotification)
	OrganizerChanged(organizerID string, change *models.ChangeNotification)
}

type ReceiptMailer interface {
	SendTicketReceipt(to string, r *mailer.Receipt) error
}

// VerificationLock is satisfied by redis.Redis.
type VerificationLock interface {
	AcquireVerification(ctx context.Context, reference, owner string) (bool, error)
	ReleaseVerification(ctx context.Context, reference, owner string) error
}

// broadcaster fans a committed change out to Kafka and the realtime feed.
// Both are best effort: the change is already durable.
type broadcaster struct {
	events   EventPublisher
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

func (b *broadcaster) publish(eventType, entityID, eventID string, payload interface{}) {
	err := b.events.Publish(&models.DomainEvent{
		Type:      eventType,
		EntityID:  entityID,
		EventID:   eventID,
		Payload:   payload,
		Timestamp: b.now(),
	})
	if err != nil {
		b.log.Warn("EVENTS", fmt.Sprintf("Failed to publish %s for %s: %v", eventType, entityID, err))
	}
}

func (b *broadcaster) eventChanged(eventID, changeType, entity, entityID string) {
	b.notifier.EventChanged(eventID, &models.ChangeNotification{
		Type: changeType, Entity: entity, EntityID: entityID, EventID: eventID,
	})
}

func (b *broadcaster) organizerChanged(organizerID, changeType, entity, entityID string) {
	b.notifier.OrganizerChanged(organizerID, &models.ChangeNotification{
		Type: changeType, Entity: entity, EntityID: entityID,
	})
}

func canManage(session models.Session, event *models.Event) bool {
	return session.Role == models.RoleAdmin || session.UserID == event.OrganizerID
}
