package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/middleware"
	"event-ticketing/internal/models"
	"event-ticketing/internal/services"
	"event-ticketing/internal/utils"
)

type TicketHandler struct {
	base
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService, loginURL string, log *logger.Logger) *TicketHandler {
	return &TicketHandler{
		base:          base{loginURL: loginURL, log: log},
		ticketService: ticketService,
	}
}

func (h *TicketHandler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ticket, err := h.ticketService.CheckIn(c.Request.Context(), middleware.Session(c), &req)
	if errors.Is(err, services.ErrAlreadyCheckedIn) && ticket != nil {
		body := utils.ErrorResponse(err.Error(), "")
		body["ticket"] = ticket
		body["checked_in_at"] = ticket.CheckedInAt
		c.JSON(http.StatusConflict, body)
		return
	}
	if err != nil {
		h.fail(c, "Check-in failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Ticket checked in", ticket))
}

func (h *TicketHandler) RevokeCheckIn(c *gin.Context) {
	var req models.RevokeCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ticket, err := h.ticketService.RevokeCheckIn(c.Request.Context(), middleware.Session(c), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, "Revoking check-in failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Check-in revoked", ticket))
}

func (h *TicketHandler) CheckInHistory(c *gin.Context) {
	history, err := h.ticketService.CheckInHistory(c.Request.Context(), middleware.Session(c), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to retrieve check-in history", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Check-in history retrieved", history))
}

func (h *TicketHandler) MyTickets(c *gin.Context) {
	tickets, err := h.ticketService.MyTickets(c.Request.Context(), middleware.Session(c))
	if err != nil {
		h.fail(c, "Failed to retrieve tickets", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Tickets retrieved", tickets))
}
