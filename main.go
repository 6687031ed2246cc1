package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"event-ticketing/internal/auth"
	"event-ticketing/internal/config"
	"event-ticketing/internal/gateway"
	"event-ticketing/internal/handlers"
	"event-ticketing/internal/kafka"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/mailer"
	"event-ticketing/internal/realtime"
	rediswrap "event-ticketing/internal/redis"
	"event-ticketing/internal/services"
	"event-ticketing/internal/storage"
)

const (
	serviceName    = "event-ticketing"
	serviceVersion = "1.0.0"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Event ticketing service starting up...")

	cfg := config.Load()
	gin.SetMode(cfg.Server.Mode)
	log.Info("CONFIG", fmt.Sprintf("Configuration loaded (db=%s, gateway=%s, kafka mock=%t)",
		cfg.Database.Driver, cfg.Payment.Gateway, cfg.Kafka.MockMode))

	log.LogProcess("DATABASE", "Initializing "+cfg.Database.Driver+" store...")
	store, err := storage.New(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize store: "+err.Error())
	}
	defer store.Close()

	gw, err := gateway.New(cfg.Payment, log)
	if err != nil {
		log.Fatal("GATEWAY", "Failed to initialize payment gateway: "+err.Error())
	}
	log.LogProcess("GATEWAY", gw.Name()+" gateway initialized")

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer producer.Close()

	redisClient := rediswrap.NewClient(cfg.Redis)
	defer redisClient.Close()
	locks := rediswrap.NewRedis(redisClient, cfg.Redis.VerifyLockTTL)
	if err := locks.Ping(context.Background()); err != nil {
		log.Warn("REDIS", "Redis unreachable, verification relies on the reference constraint: "+err.Error())
	} else {
		log.LogProcess("REDIS", "Redis connection successful")
	}

	notifier := realtime.NewNotifier(cfg.PubNub, log)
	sender := mailer.NewSender(cfg.SMTP, log)

	paymentService := services.NewPaymentService(store, gw, producer, producer, notifier, sender, locks, cfg.Payment, log)
	ticketService := services.NewTicketService(store, producer, notifier, log)
	catalogService := services.NewCatalogService(store, producer, notifier, log)
	walletService := services.NewWalletService(store, producer, notifier, cfg.Payment.Currency, log)
	log.LogProcess("SERVICE", "Services initialized")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if !cfg.Kafka.MockMode {
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, log)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
		}
		defer consumer.Close()

		go func() {
			log.LogKafka("START", kafka.TopicWebhooks, "Starting webhook consumer goroutine")
			if err := consumer.ConsumeWebhooks(ctx, paymentService.HandleWebhookMessage); err != nil && ctx.Err() == nil {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	routes := &handlers.Router{
		Payments: handlers.NewPaymentHandler(paymentService, cfg.Auth.LoginURL, log),
		Tickets:  handlers.NewTicketHandler(ticketService, cfg.Auth.LoginURL, log),
		Catalog:  handlers.NewCatalogHandler(catalogService, cfg.Auth.LoginURL, log),
		Wallet:   handlers.NewWalletHandler(walletService, cfg.Auth.LoginURL, log),
		Health: handlers.NewHealthHandler(serviceName, serviceVersion,
			map[string]handlers.Pinger{"database": store.HealthCheck},
			map[string]handlers.Pinger{"redis": locks.Ping},
		),
	}
	router := routes.Engine(cfg, tokens, log)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on "+cfg.Server.Port)
		log.Info("STARTUP", "Health check available at: http://localhost"+cfg.Server.Port+"/health")
		log.Info("STARTUP", "Payments API available at: http://localhost"+cfg.Server.Port+"/api/v1/payments")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("SHUTDOWN", "Server forced to shutdown: "+err.Error())
		return
	}

	log.Info("SHUTDOWN", "Shutdown completed successfully")
}
