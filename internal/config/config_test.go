package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, "paystack", cfg.Payment.Gateway)
	assert.Equal(t, "NGN", cfg.Payment.Currency)
	assert.Equal(t, []string{"localhost:29092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Minute, cfg.Redis.VerifyLockTTL)
	assert.True(t, cfg.Kafka.MockMode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY", "Stripe")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_MOCK_MODE", "false")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("VERIFY_LOCK_TTL", "bogus")

	cfg := Load()

	assert.Equal(t, "stripe", cfg.Payment.Gateway)
	assert.Equal(t, "USD", cfg.Payment.Currency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.MockMode)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 2*time.Minute, cfg.Redis.VerifyLockTTL)
}
