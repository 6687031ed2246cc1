package services

import (
	"errors"

	"event-ticketing/internal/models"
)

// Validation (400)
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrEventMismatch      = errors.New("ticket type does not belong to this event")
	ErrUserMismatch       = errors.New("userId does not match the signed-in user")
	ErrIncompleteMetadata = errors.New("payment metadata is incomplete")
)

// Not found (404)
var (
	ErrTicketTypeNotFound  = errors.New("Ticket type not found or inactive")
	ErrEventNotFound       = errors.New("event not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Business rules (400)
var (
	ErrSoldOut           = errors.New("Tickets sold out")
	ErrPriceMismatch     = errors.New("Price mismatch")
	ErrSalesClosed       = errors.New("ticket sales are closed")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidQuantity   = errors.New("quantity cannot be lower than tickets already sold")
	ErrWrongEvent        = errors.New("ticket is not valid for this event")
)

// Check-in conflicts (409)
var (
	ErrAlreadyCheckedIn = models.ErrAlreadyCheckedIn
	ErrNotCheckedIn     = models.ErrNotCheckedIn
	ErrTicketInactive   = models.ErrTicketInactive
)

var (
	ErrUnauthenticated        = errors.New("authentication required")
	ErrForbidden              = errors.New("not allowed for this user")
	ErrVerificationInProgress = errors.New("verification already in progress for this reference")
	ErrGateway                = errors.New("payment gateway error")
)
