package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Payment  PaymentConfig
	Auth     AuthConfig
	PubNub   PubNubConfig
	SMTP     SMTPConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	RateLimit      int // requests per second across all clients
	RateBurst      int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver       string // mysql, postgres or memory
	URL          string // overrides the discrete fields when set
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	MockMode bool
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	VerifyLockTTL time.Duration
}

type PaymentConfig struct {
	Gateway             string // paystack or stripe
	Currency            string
	PaystackSecretKey   string
	PaystackBaseURL     string
	StripeSecretKey     string
	StripeWebhookSecret string
	CallbackURL         string
	CancelURL           string
	Timeout             time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	LoginURL  string
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8085"),
			Mode:         getEnv("GIN_MODE", "release"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),

			RateLimit:      getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateBurst:      getEnvAsInt("RATE_LIMIT_BURST", 100),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "mysql"),
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "3306"),
			Username:     getEnv("DB_USER", "root"),
			Password:     getEnv("DB_PASS", "password"),
			Database:     getEnv("DB_NAME", "event_ticketing"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvAsList("KAFKA_BROKERS", "localhost:29092"),
			GroupID:  getEnv("KAFKA_GROUP_ID", "event-ticketing"),
			MockMode: getEnvAsBool("KAFKA_MOCK_MODE", true),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			VerifyLockTTL: getEnvAsDuration("VERIFY_LOCK_TTL", "2m"),
		},
		Payment: PaymentConfig{
			Gateway:             strings.ToLower(getEnv("PAYMENT_GATEWAY", "paystack")),
			Currency:            strings.ToUpper(getEnv("PAYMENT_CURRENCY", "NGN")),
			PaystackSecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
			PaystackBaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			CallbackURL:         getEnv("PAYMENT_CALLBACK_URL", "http://localhost:3000/payment/callback"),
			CancelURL:           getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/events"),
			Timeout:             getEnvAsDuration("PAYMENT_TIMEOUT", "30s"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-me"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", "24h"),
			LoginURL:  getEnv("LOGIN_URL", "/auth/login"),
		},
		PubNub: PubNubConfig{
			PublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
			SubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
			SecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
			UserID:       getEnv("PUBNUB_USER_ID", "event-ticketing-server"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "tickets@localhost"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("ENABLE_METRICS", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if duration, err := time.ParseDuration(getEnv(key, defaultValue)); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
