package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

var (
	ErrGatewayRequest   = errors.New("payment gateway request failed")
	ErrGatewayRejected  = errors.New("payment gateway rejected the request")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrIgnoredEvent     = errors.New("webhook event ignored")
	ErrNotConfigured    = errors.New("payment gateway not configured")
)

type InitializeRequest struct {
	Reference   string
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CallbackURL string
	Metadata    map[string]string
}

type InitializeResult struct {
	AuthorizationURL string
	Reference        string
}

// VerifyResult is the gateway's view of a transaction. Amount is in major
// units, converted back from the gateway's minor units.
type VerifyResult struct {
	Reference string
	Status    models.PaymentStatus
	Message   string
	Amount    decimal.Decimal
	Currency  string
	Metadata  map[string]string
	PaidAt    time.Time
}

func (r *VerifyResult) Succeeded() bool {
	return r.Status == models.StatusSuccess
}

// WebhookEvent is a verified gateway notification about one reference.
type WebhookEvent struct {
	Type      string
	Reference string
	Success   bool
}

type Gateway interface {
	Name() string
	Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	// ParseWebhook checks the signature and returns ErrInvalidSignature when it
	// does not match, ErrIgnoredEvent for event types that carry no payment.
	ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error)
}

// New builds the gateway selected by cfg.Gateway.
func New(cfg config.PaymentConfig, log *logger.Logger) (Gateway, error) {
	switch cfg.Gateway {
	case "paystack":
		return NewPaystack(cfg, log), nil
	case "stripe":
		return NewStripe(cfg, log)
	default:
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrNotConfigured, cfg.Gateway)
	}
}

// MinorUnits converts a major-unit amount to the gateway's integer unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
