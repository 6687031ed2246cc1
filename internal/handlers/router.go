package handlers

import (
	"github.com/gin-gonic/gin"

	"event-ticketing/internal/auth"
	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/middleware"
	"event-ticketing/internal/monitoring"
)

type Router struct {
	Payments *PaymentHandler
	Tickets  *TicketHandler
	Catalog  *CatalogHandler
	Wallet   *WalletHandler
	Health   *HealthHandler
}

// Engine builds the gin engine with the middleware chain and all routes.
func (r *Router) Engine(cfg *config.Config, tokens *auth.TokenManager, log *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.SecurityHeaders(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(cfg.Server, log))
	if cfg.Metrics.Enabled {
		router.Use(monitoring.Middleware())
		router.GET(cfg.Metrics.Path, monitoring.Handler())
	}

	if r.Health != nil {
		router.GET("/health", r.Health.Health)
	}

	loginURL := cfg.Auth.LoginURL
	requireSession := middleware.RequireSession(loginURL)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(tokens, loginURL, log))
	{
		payments := v1.Group("/payments")
		{
			payments.POST("/process", requireSession, r.Payments.ProcessPayment)
			payments.POST("/verify", requireSession, r.Payments.VerifyPayment)
			payments.POST("/webhook", r.Payments.Webhook)
		}

		events := v1.Group("/events")
		{
			events.POST("", requireSession, r.Catalog.CreateEvent)
			events.GET("/:id", r.Catalog.GetEvent)
			events.POST("/:id/ticket-types", requireSession, r.Catalog.CreateTicketType)
		}

		ticketTypes := v1.Group("/ticket-types", requireSession)
		{
			ticketTypes.PUT("/:id", r.Catalog.UpdateTicketType)
			ticketTypes.POST("/:id/toggle", r.Catalog.ToggleTicketType)
		}

		v1.POST("/checkins", requireSession, r.Tickets.CheckIn)

		tickets := v1.Group("/tickets", requireSession)
		{
			tickets.GET("/mine", r.Tickets.MyTickets)
			tickets.POST("/:id/revoke-checkin", r.Tickets.RevokeCheckIn)
			tickets.GET("/:id/checkins", r.Tickets.CheckInHistory)
		}

		wallet := v1.Group("/wallet", requireSession)
		{
			wallet.GET("", r.Wallet.GetWallet)
			wallet.GET("/ledger", r.Wallet.Ledger)
			wallet.POST("/withdraw", r.Wallet.Withdraw)
		}
	}

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
