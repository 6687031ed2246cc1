package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/internal/gateway"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/middleware"
	"event-ticketing/internal/models"
	"event-ticketing/internal/services"
	"event-ticketing/internal/utils"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	base
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService, loginURL string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		base:           base{loginURL: loginURL, log: log},
		paymentService: paymentService,
	}
}

// ProcessPayment answers with the bare PaymentResponse so the purchase
// client can read success/paymentUrl/redirectUrl directly.
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.paymentService.ProcessPayment(c.Request.Context(), middleware.Session(c), &req)
	if err != nil {
		h.fail(c, "Payment processing failed", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// VerifyPayment is called by the front end's callback page with the
// reference from the gateway redirect. A gateway-side failure is a 200 with
// success=false.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.paymentService.VerifyForBuyer(c.Request.Context(), middleware.Session(c), req.Reference)
	if err != nil {
		h.fail(c, "Payment verification failed", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Webhook must see the raw body: the signature is computed over its bytes.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Failed to read request body", err.Error()))
		return
	}

	if err := h.paymentService.AcceptWebhook(c.Request.Context(), payload, c.Request.Header); err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			h.log.LogSecurity("WEBHOOK_SIGNATURE", "Rejected webhook from "+c.ClientIP())
			c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Invalid signature", ""))
			return
		}
		h.fail(c, "Webhook processing failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
