package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	OrganizerID string    `json:"organizer_id" gorm:"column:organizer_id;size:36;not null;index"`
	Title       string    `json:"title" gorm:"column:title;not null"`
	Venue       string    `json:"venue" gorm:"column:venue"`
	StartsAt    time.Time `json:"starts_at" gorm:"column:starts_at"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Event) TableName() string { return "events" }

// TicketType is a purchasable tier of an event. Sold never exceeds Quantity.
type TicketType struct {
	ID             string          `json:"id" gorm:"column:id;primaryKey;size:36"`
	EventID        string          `json:"event_id" gorm:"column:event_id;size:36;not null;index"`
	Name           string          `json:"name" gorm:"column:name;not null"`
	Price          decimal.Decimal `json:"price" gorm:"column:price;type:decimal(12,2);not null"`
	Quantity       int             `json:"quantity" gorm:"column:quantity;not null"`
	Sold           int             `json:"sold" gorm:"column:sold;not null;default:0"`
	IsActive       bool            `json:"is_active" gorm:"column:is_active;not null;default:true"`
	StartDate      *time.Time      `json:"start_date,omitempty" gorm:"column:start_date"`
	EndDate        *time.Time      `json:"end_date,omitempty" gorm:"column:end_date"`
	MaxPerPurchase *int            `json:"max_per_purchase,omitempty" gorm:"column:max_per_purchase"`
	CreatedAt      time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (TicketType) TableName() string { return "ticket_types" }

func (t *TicketType) Remaining() int {
	if t.Sold >= t.Quantity {
		return 0
	}
	return t.Quantity - t.Sold
}

func (t *TicketType) SoldOut() bool {
	return t.Sold >= t.Quantity
}

func (t *TicketType) IsFree() bool {
	return t.Price.IsZero()
}

// OnSale reports whether now falls inside the optional sales window.
func (t *TicketType) OnSale(now time.Time) bool {
	if t.StartDate != nil && now.Before(*t.StartDate) {
		return false
	}
	if t.EndDate != nil && now.After(*t.EndDate) {
		return false
	}
	return true
}

type EventWithTicketTypes struct {
	*Event
	TicketTypes []*TicketType `json:"ticket_types"`
}
