package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

// Stripe drives Stripe Checkout. The checkout session ID is the payment
// reference: the success URL carries it back as ?reference=.
type Stripe struct {
	client        *client.API
	webhookSecret string
	cancelURL     string
	log           *logger.Logger
}

func NewStripe(cfg config.PaymentConfig, log *logger.Logger) (*Stripe, error) {
	if cfg.StripeSecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY not set", ErrNotConfigured)
	}

	sc := client.New(cfg.StripeSecretKey, nil)

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &Stripe{
		client:        sc,
		webhookSecret: cfg.StripeWebhookSecret,
		cancelURL:     cfg.CancelURL,
		log:           log,
	}, nil
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResult, error) {
	s.log.LogPayment("INITIALIZE", req.Reference, fmt.Sprintf("Creating Stripe checkout session, amount: %s %s", req.Amount, req.Currency))

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["reference"] = req.Reference

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail:     stripe.String(req.Email),
		SuccessURL:        stripe.String(withSessionReference(req.CallbackURL)),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		Metadata:          metadata,
	}
	params.Context = ctx

	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}

	s.log.LogPayment("STRIPE", sess.ID, "Checkout session created")
	return &InitializeResult{AuthorizationURL: sess.URL, Reference: sess.ID}, nil
}

func (s *Stripe) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	s.log.LogPayment("VERIFY", reference, "Retrieving checkout session from Stripe")

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.client.CheckoutSessions.Get(reference, params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve checkout session: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}

	status := checkoutStatus(sess)
	result := &VerifyResult{
		Reference: sess.ID,
		Status:    status,
		Message:   fmt.Sprintf("checkout %s, payment %s", sess.Status, sess.PaymentStatus),
		Amount:    FromMinorUnits(sess.AmountTotal),
		Currency:  strings.ToUpper(string(sess.Currency)),
		Metadata:  sess.Metadata,
	}
	if status == models.StatusSuccess {
		result.PaidAt = time.Now().UTC()
	}
	return result, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the session
// of a checkout.session.completed event.
func (s *Stripe) ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.log.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("Stripe webhook rejected: %v", err))
		return nil, ErrInvalidSignature
	}

	if event.Type != "checkout.session.completed" {
		return nil, ErrIgnoredEvent
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	return &WebhookEvent{
		Type:      string(event.Type),
		Reference: sess.ID,
		Success:   sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}, nil
}

func checkoutStatus(sess *stripe.CheckoutSession) models.PaymentStatus {
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return models.StatusSuccess
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		return models.StatusAbandoned
	default:
		return models.StatusPending
	}
}

// withSessionReference appends reference={CHECKOUT_SESSION_ID}, which Stripe
// substitutes on redirect.
func withSessionReference(callbackURL string) string {
	sep := "?"
	if u, err := url.Parse(callbackURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return callbackURL + sep + "reference={CHECKOUT_SESSION_ID}"
}
