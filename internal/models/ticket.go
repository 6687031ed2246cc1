package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketCancelled TicketStatus = "cancelled"
)

type Ticket struct {
	ID           string          `json:"id" gorm:"column:id;primaryKey;size:36"`
	EventID      string          `json:"event_id" gorm:"column:event_id;size:36;not null;index"`
	TicketTypeID string          `json:"ticket_type_id" gorm:"column:ticket_type_id;size:36;not null;index"`
	UserID       string          `json:"user_id" gorm:"column:user_id;size:36;not null;index"`
	Price        decimal.Decimal `json:"price" gorm:"column:price;type:decimal(12,2);not null"`
	Status       TicketStatus    `json:"status" gorm:"column:status;size:20;not null"`
	QRCode       string          `json:"qr_code" gorm:"column:qr_code;size:64;not null;uniqueIndex"`
	CheckedIn    bool            `json:"checked_in" gorm:"column:checked_in;not null;default:false"`
	CheckedInAt  *time.Time      `json:"checked_in_at,omitempty" gorm:"column:checked_in_at"`
	PurchaseDate time.Time       `json:"purchase_date" gorm:"column:purchase_date;not null"`
}

func (Ticket) TableName() string { return "tickets" }

// CheckInState is the redemption state of a ticket. The only transitions are
// Unredeemed -> CheckedIn (scan) and CheckedIn -> Unredeemed (audited revoke).
type CheckInState string

const (
	StateUnredeemed CheckInState = "unredeemed"
	StateCheckedIn  CheckInState = "checked_in"
)

type CheckInAction string

const (
	ActionCheckIn CheckInAction = "check_in"
	ActionRevoke  CheckInAction = "revoke"
)

var (
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	ErrNotCheckedIn     = errors.New("ticket is not checked in")
	ErrTicketInactive   = errors.New("ticket is not active")
)

func (t *Ticket) State() CheckInState {
	if t.CheckedIn {
		return StateCheckedIn
	}
	return StateUnredeemed
}

// Transition validates action against the current state and returns the
// state it leads to. It does not mutate the ticket.
func (t *Ticket) Transition(action CheckInAction) (CheckInState, error) {
	if t.Status != TicketActive {
		return t.State(), ErrTicketInactive
	}
	switch action {
	case ActionCheckIn:
		if t.State() == StateCheckedIn {
			return t.State(), ErrAlreadyCheckedIn
		}
		return StateCheckedIn, nil
	case ActionRevoke:
		if t.State() != StateCheckedIn {
			return t.State(), ErrNotCheckedIn
		}
		return StateUnredeemed, nil
	default:
		return t.State(), errors.New("unknown check-in action")
	}
}

// CheckInAudit is written in the same transaction as every state change.
type CheckInAudit struct {
	ID        string        `json:"id" gorm:"column:id;primaryKey;size:36"`
	TicketID  string        `json:"ticket_id" gorm:"column:ticket_id;size:36;not null;index"`
	Action    CheckInAction `json:"action" gorm:"column:action;size:20;not null"`
	ActorID   string        `json:"actor_id" gorm:"column:actor_id;size:36;not null"`
	Reason    string        `json:"reason,omitempty" gorm:"column:reason"`
	CreatedAt time.Time     `json:"created_at" gorm:"column:created_at;not null"`
}

func (CheckInAudit) TableName() string { return "check_in_audit" }
