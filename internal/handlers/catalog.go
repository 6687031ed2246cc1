package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/middleware"
	"event-ticketing/internal/models"
	"event-ticketing/internal/services"
	"event-ticketing/internal/utils"
)

type CatalogHandler struct {
	base
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService, loginURL string, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		base:           base{loginURL: loginURL, log: log},
		catalogService: catalogService,
	}
}

func (h *CatalogHandler) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	event, err := h.catalogService.CreateEvent(c.Request.Context(), middleware.Session(c), &req)
	if err != nil {
		h.fail(c, "Failed to create event", err)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *CatalogHandler) GetEvent(c *gin.Context) {
	event, err := h.catalogService.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to retrieve event", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Event retrieved", event))
}

func (h *CatalogHandler) CreateTicketType(c *gin.Context) {
	var req models.TicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tt, err := h.catalogService.CreateTicketType(c.Request.Context(), middleware.Session(c), c.Param("id"), &req)
	if err != nil {
		h.fail(c, "Failed to create ticket type", err)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Ticket type created", tt))
}

func (h *CatalogHandler) UpdateTicketType(c *gin.Context) {
	var req models.TicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tt, err := h.catalogService.UpdateTicketType(c.Request.Context(), middleware.Session(c), c.Param("id"), &req)
	if err != nil {
		h.fail(c, "Failed to update ticket type", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Ticket type updated", tt))
}

func (h *CatalogHandler) ToggleTicketType(c *gin.Context) {
	tt, err := h.catalogService.ToggleTicketType(c.Request.Context(), middleware.Session(c), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to toggle ticket type", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Ticket type toggled", tt))
}
