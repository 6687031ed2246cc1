package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusSuccess   PaymentStatus = "success"
	StatusFailed    PaymentStatus = "failed"
	StatusAbandoned PaymentStatus = "abandoned"
	StatusCompleted PaymentStatus = "completed"
)

// Metadata keys carried through the gateway and read back on verification.
const (
	MetaUserID       = "userId"
	MetaEventID      = "eventId"
	MetaTicketTypeID = "ticketTypeId"
	MetaOrganizerID  = "organizerId"
	MetaEmail        = "email"
)

type PaymentRequest struct {
	Amount       *decimal.Decimal  `json:"amount" binding:"required"`
	Email        string            `json:"email" binding:"required,email"`
	EventID      string            `json:"eventId" binding:"required"`
	TicketTypeID string            `json:"ticketTypeId" binding:"required"`
	UserID       string            `json:"userId"`
	CallbackURL  string            `json:"callbackUrl"`
	Metadata     map[string]string `json:"metadata"`
}

// PaymentResponse is returned by process-payment. Free purchases carry
// Ticket and RedirectURL; paid purchases carry PaymentURL and Reference.
type PaymentResponse struct {
	Success     bool    `json:"success"`
	Ticket      *Ticket `json:"ticket,omitempty"`
	RedirectURL string  `json:"redirectUrl,omitempty"`
	PaymentURL  string  `json:"paymentUrl,omitempty"`
	Reference   string  `json:"reference,omitempty"`
}

type VerifyRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// VerifyResponse doubles as the soft-failure body: Success=false with the
// gateway's status and message and no ticket.
type VerifyResponse struct {
	Success     bool                `json:"success"`
	Status      PaymentStatus       `json:"status"`
	Message     string              `json:"message,omitempty"`
	Duplicate   bool                `json:"duplicate,omitempty"`
	Ticket      *Ticket             `json:"ticket,omitempty"`
	Transaction *PaymentTransaction `json:"transaction,omitempty"`
}

// Session identifies the caller. It is built once per request by the auth
// middleware and handed to services explicitly.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

const (
	RoleAttendee  = "attendee"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

func (s Session) IsZero() bool { return s.UserID == "" }

type CreateEventRequest struct {
	Title    string    `json:"title" binding:"required"`
	Venue    string    `json:"venue"`
	StartsAt time.Time `json:"starts_at" binding:"required"`
}

type TicketTypeRequest struct {
	Name           string          `json:"name" binding:"required"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity" binding:"required,gt=0"`
	StartDate      *time.Time      `json:"start_date"`
	EndDate        *time.Time      `json:"end_date"`
	MaxPerPurchase *int            `json:"max_per_purchase"`
}

type CheckInRequest struct {
	EventID string `json:"event_id" binding:"required"`
	QRCode  string `json:"qr_code" binding:"required"`
}

type RevokeCheckInRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WebhookMessage struct {
	Gateway   string    `json:"gateway"`
	Reference string    `json:"reference"`
	Event     string    `json:"event"`
	Received  time.Time `json:"received"`
}

// DomainEvent is published to Kafka after a committed change.
type DomainEvent struct {
	Type      string      `json:"type"`
	EntityID  string      `json:"entity_id"`
	EventID   string      `json:"event_id,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	EventTicketIssued       = "ticket.issued"
	EventPaymentCompleted   = "payment.completed"
	EventPaymentFailed      = "payment.failed"
	EventPaymentNeedsRefund = "payment.refund_required"
	EventTicketCheckedIn    = "ticket.checked_in"
	EventCheckInRevoked     = "ticket.check_in_revoked"
	EventWalletWithdrawn    = "wallet.withdrawn"
	EventTicketTypeChanged  = "ticket_type.changed"
	EventEventCreated       = "event.created"
)

// ChangeNotification is pushed to realtime subscribers, who re-fetch.
type ChangeNotification struct {
	Type     string `json:"type"`
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
	EventID  string `json:"event_id,omitempty"`
}
