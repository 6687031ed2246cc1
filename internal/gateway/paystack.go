package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

const paystackSignatureHeader = "x-paystack-signature"

// Paystack talks to the Paystack transaction REST API.
type Paystack struct {
	secretKey string
	baseURL   string
	http      *http.Client
	log       *logger.Logger
}

func NewPaystack(cfg config.PaymentConfig, log *logger.Logger) *Paystack {
	return &Paystack{
		secretKey: cfg.PaystackSecretKey,
		baseURL:   strings.TrimRight(cfg.PaystackBaseURL, "/"),
		http:      &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
}

func (p *Paystack) Name() string { return "paystack" }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          *time.Time      `json:"paid_at"`
	Metadata        json.RawMessage `json:"metadata"`
}

func (p *Paystack) Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResult, error) {
	if p.secretKey == "" {
		return nil, fmt.Errorf("%w: PAYSTACK_SECRET_KEY not set", ErrNotConfigured)
	}

	body := map[string]interface{}{
		"email":        req.Email,
		"amount":       MinorUnits(req.Amount),
		"currency":     req.Currency,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
		"metadata":     req.Metadata,
	}

	p.log.LogPayment("INITIALIZE", req.Reference, fmt.Sprintf("Paystack initialize %s %s for %s", req.Amount, req.Currency, req.Email))

	var data paystackInitData
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}

	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &InitializeResult{AuthorizationURL: data.AuthorizationURL, Reference: ref}, nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if p.secretKey == "" {
		return nil, fmt.Errorf("%w: PAYSTACK_SECRET_KEY not set", ErrNotConfigured)
	}

	p.log.LogPayment("VERIFY", reference, "Paystack verify")

	var data paystackVerifyData
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Reference: data.Reference,
		Status:    models.PaymentStatus(data.Status),
		Message:   data.GatewayResponse,
		Amount:    FromMinorUnits(data.Amount),
		Currency:  data.Currency,
		Metadata:  flattenMetadata(data.Metadata),
	}
	if result.Reference == "" {
		result.Reference = reference
	}
	if data.PaidAt != nil {
		result.PaidAt = *data.PaidAt
	}
	return result, nil
}

// ParseWebhook checks the HMAC-SHA512 of the raw body against the signature
// header. Only charge.success carries a payment to verify.
func (p *Paystack) ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error) {
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(header.Get(paystackSignatureHeader))) {
		p.log.LogSecurity("WEBHOOK_SIGNATURE", "Paystack webhook signature mismatch")
		return nil, ErrInvalidSignature
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", err)
	}
	if event.Event != "charge.success" || event.Data.Reference == "" {
		return nil, ErrIgnoredEvent
	}

	return &WebhookEvent{
		Type:      event.Event,
		Reference: event.Data.Reference,
		Success:   event.Data.Status == string(models.StatusSuccess),
	}, nil
}

func (p *Paystack) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.log.Error("PAYSTACK", fmt.Sprintf("%s %s failed: %v", method, path, err))
		return fmt.Errorf("%w: %v", ErrGatewayRequest, err)
	}
	defer resp.Body.Close()

	var env paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: undecodable response (HTTP %d)", ErrGatewayRequest, resp.StatusCode)
	}
	if resp.StatusCode >= 300 || !env.Status {
		p.log.Warn("PAYSTACK", fmt.Sprintf("%s %s rejected: HTTP %d %s", method, path, resp.StatusCode, env.Message))
		return fmt.Errorf("%w: %s", ErrGatewayRejected, env.Message)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: unexpected data: %v", ErrGatewayRequest, err)
	}
	return nil
}

// flattenMetadata accepts Paystack's metadata, which comes back either as an
// object or as an empty string.
func flattenMetadata(raw json.RawMessage) map[string]string {
	out := make(map[string]string)
	var m map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return out
	}
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
