package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/middleware"
	"event-ticketing/internal/models"
	"event-ticketing/internal/services"
	"event-ticketing/internal/utils"
)

type WalletHandler struct {
	base
	walletService *services.WalletService
}

func NewWalletHandler(walletService *services.WalletService, loginURL string, log *logger.Logger) *WalletHandler {
	return &WalletHandler{
		base:          base{loginURL: loginURL, log: log},
		walletService: walletService,
	}
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	wallet, err := h.walletService.GetWallet(c.Request.Context(), middleware.Session(c))
	if err != nil {
		h.fail(c, "Failed to retrieve wallet", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Wallet retrieved", wallet))
}

func (h *WalletHandler) Ledger(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid limit", err.Error()))
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid offset", err.Error()))
		return
	}

	lines, err := h.walletService.Ledger(c.Request.Context(), middleware.Session(c), limit, offset)
	if err != nil {
		h.fail(c, "Failed to retrieve ledger", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Ledger retrieved", lines))
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	wallet, tx, err := h.walletService.Withdraw(c.Request.Context(), middleware.Session(c), req.Amount)
	if err != nil {
		h.fail(c, "Withdrawal failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Withdrawal recorded", gin.H{
		"wallet":      wallet,
		"transaction": tx,
	}))
}
