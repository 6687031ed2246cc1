package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/middleware"
	"event-ticketing/internal/services"
	"event-ticketing/internal/utils"
)

// base carries what every handler needs to turn a service error into a
// response.
type base struct {
	loginURL string
	log      *logger.Logger
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrTicketTypeNotFound),
		errors.Is(err, services.ErrEventNotFound),
		errors.Is(err, services.ErrTicketNotFound),
		errors.Is(err, services.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyCheckedIn),
		errors.Is(err, services.ErrNotCheckedIn),
		errors.Is(err, services.ErrTicketInactive),
		errors.Is(err, services.ErrVerificationInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrEventMismatch),
		errors.Is(err, services.ErrUserMismatch),
		errors.Is(err, services.ErrIncompleteMetadata),
		errors.Is(err, services.ErrSoldOut),
		errors.Is(err, services.ErrPriceMismatch),
		errors.Is(err, services.ErrSalesClosed),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrWrongEvent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status it maps to. Client errors carry the
// error text as the message; server errors carry action with the error as
// details.
func (b *base) fail(c *gin.Context, action string, err error) {
	status := statusFor(err)
	switch {
	case status == http.StatusUnauthorized:
		middleware.Unauthorized(c, b.loginURL, nil)
	case status >= http.StatusInternalServerError:
		b.log.Error("API", fmt.Sprintf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, action, err))
		c.JSON(status, utils.ErrorResponse(action, err.Error()))
	default:
		c.JSON(status, utils.ErrorResponse(err.Error(), ""))
	}
}

func (b *base) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
}
