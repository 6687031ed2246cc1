package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"event-ticketing/internal/models"
)

func serve(t *testing.T, status int, body interface{}) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.URL.Path)
		mu.Unlock()
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func purchaseRequest() *models.PaymentRequest {
	amount := decimal.NewFromInt(5000)
	return &models.PaymentRequest{Amount: &amount, Email: "a@example.com", EventID: "ev-1", TicketTypeID: "tt-1"}
}

func TestPurchaseWithoutTokenGoesToLogin(t *testing.T) {
	srv, calls := serve(t, http.StatusOK, nil)

	out := New(srv.URL, "/login", "").Purchase(context.Background(), purchaseRequest())
	assert.Equal(t, OutcomeLogin, out.Kind)
	assert.Equal(t, "/login", out.URL)
	assert.Empty(t, *calls)
}

func TestPurchaseOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   interface{}
		kind   OutcomeKind
		url    string
		msg    string
	}{
		{"gateway redirect", http.StatusOK, models.PaymentResponse{Success: true, PaymentURL: "https://pay.example/x", Reference: "tkt_1"}, OutcomeRedirect, "https://pay.example/x", ""},
		{"free ticket", http.StatusOK, models.PaymentResponse{Success: true, RedirectURL: "https://app.example/callback", Ticket: &models.Ticket{ID: "t-1"}}, OutcomeRedirect, "https://app.example/callback", ""},
		{"sold out", http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Tickets sold out"}, OutcomeToast, "", "Tickets sold out"},
		{"session expired", http.StatusUnauthorized, map[string]interface{}{"error": "Unauthorized", "login_url": "/auth/login"}, OutcomeLogin, "/auth/login", ""},
		{"server error", http.StatusInternalServerError, map[string]interface{}{}, OutcomeToast, "", "Request failed with status 500"},
		{"empty body", http.StatusOK, models.PaymentResponse{Success: true}, OutcomeToast, "", "Payment could not be started"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, calls := serve(t, tc.status, tc.body)

			out := New(srv.URL, "/login", "tok").Purchase(context.Background(), purchaseRequest())
			assert.Equal(t, tc.kind, out.Kind)
			assert.Equal(t, tc.url, out.URL)
			assert.Equal(t, tc.msg, out.Message)
			assert.Equal(t, []string{"/api/v1/payments/process"}, *calls)
		})
	}
}

func TestCompleteCallback(t *testing.T) {
	t.Run("ticket", func(t *testing.T) {
		srv, calls := serve(t, http.StatusOK, models.VerifyResponse{Success: true, Status: models.StatusCompleted, Ticket: &models.Ticket{ID: "t-1"}})

		out := New(srv.URL, "/login", "tok").CompleteCallback(context.Background(), "https://app.example/callback?reference=tkt_1")
		assert.Equal(t, OutcomeTicket, out.Kind)
		assert.Equal(t, "t-1", out.Ticket.ID)
		assert.Equal(t, "tkt_1", out.Reference)
		assert.Equal(t, []string{"/api/v1/payments/verify"}, *calls)
	})

	t.Run("soft failure", func(t *testing.T) {
		srv, _ := serve(t, http.StatusOK, models.VerifyResponse{Success: false, Status: models.StatusFailed, Message: "Declined"})

		out := New(srv.URL, "/login", "tok").CompleteCallback(context.Background(), "https://app.example/callback?trxref=tkt_1")
		assert.Equal(t, OutcomeToast, out.Kind)
		assert.Equal(t, "Declined", out.Message)
	})

	t.Run("missing reference", func(t *testing.T) {
		srv, calls := serve(t, http.StatusOK, nil)

		out := New(srv.URL, "/login", "tok").CompleteCallback(context.Background(), "https://app.example/callback")
		assert.Equal(t, OutcomeToast, out.Kind)
		assert.Equal(t, ErrMissingReference.Error(), out.Message)
		assert.Empty(t, *calls)
	})
}

func TestNetworkErrorBecomesToast(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, nil)
	srv.Close()

	out := New(srv.URL, "/login", "tok").Purchase(context.Background(), purchaseRequest())
	assert.Equal(t, OutcomeToast, out.Kind)
	assert.Contains(t, out.Message, "Network error")
}
