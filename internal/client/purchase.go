// Package client drives the purchase flow from a front end: it calls
// process-payment and verify-payment and turns every result into an
// Outcome the UI acts on. It never retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"event-ticketing/internal/models"
)

type OutcomeKind string

const (
	// OutcomeLogin sends the user to URL to sign in.
	OutcomeLogin OutcomeKind = "login"
	// OutcomeRedirect navigates the browser to URL.
	OutcomeRedirect OutcomeKind = "redirect"
	// OutcomeToast shows Message and stays on the page.
	OutcomeToast OutcomeKind = "toast"
	// OutcomeTicket shows the issued Ticket.
	OutcomeTicket OutcomeKind = "ticket"
)

type Outcome struct {
	Kind      OutcomeKind
	URL       string
	Message   string
	Reference string
	Ticket    *models.Ticket
}

var ErrMissingReference = errors.New("payment reference missing from callback URL")

type Client struct {
	baseURL  string
	loginURL string
	token    string
	http     *http.Client
}

// New returns a client for the API at baseURL. token is the session's bearer
// token and may be empty for a signed-out user.
func New(baseURL, loginURL, token string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		loginURL: loginURL,
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Purchase starts a purchase. A paid ticket redirects to the gateway, a free
// one redirects to the callback route with the ticket already issued.
func (c *Client) Purchase(ctx context.Context, req *models.PaymentRequest) *Outcome {
	if c.token == "" {
		return c.login("")
	}

	var res models.PaymentResponse
	if out := c.post(ctx, "/api/v1/payments/process", req, &res); out != nil {
		return out
	}

	switch {
	case res.PaymentURL != "":
		return &Outcome{Kind: OutcomeRedirect, URL: res.PaymentURL, Reference: res.Reference}
	case res.RedirectURL != "":
		return &Outcome{Kind: OutcomeRedirect, URL: res.RedirectURL, Ticket: res.Ticket}
	default:
		return toast("Payment could not be started")
	}
}

// CompleteCallback handles the gateway's redirect back to the callback route
// by forwarding its reference query parameter to verify-payment.
func (c *Client) CompleteCallback(ctx context.Context, callbackURL string) *Outcome {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return toast(fmt.Sprintf("Invalid callback URL: %v", err))
	}
	reference := u.Query().Get("reference")
	if reference == "" {
		reference = u.Query().Get("trxref")
	}
	if reference == "" {
		return toast(ErrMissingReference.Error())
	}
	if c.token == "" {
		return c.login("")
	}

	var res models.VerifyResponse
	if out := c.post(ctx, "/api/v1/payments/verify", &models.VerifyRequest{Reference: reference}, &res); out != nil {
		return out
	}

	if !res.Success || res.Ticket == nil {
		msg := res.Message
		if msg == "" {
			msg = fmt.Sprintf("Payment %s", res.Status)
		}
		return &Outcome{Kind: OutcomeToast, Message: msg, Reference: reference}
	}
	return &Outcome{Kind: OutcomeTicket, Ticket: res.Ticket, Reference: reference}
}

// post returns a non-nil Outcome when the call did not produce a 200 body.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) *Outcome {
	raw, err := json.Marshal(body)
	if err != nil {
		return toast(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return toast(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return toast(fmt.Sprintf("Network error: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return toast(fmt.Sprintf("Failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error    string `json:"error"`
			Details  string `json:"details"`
			LoginURL string `json:"login_url"`
		}
		_ = json.Unmarshal(data, &e)
		if resp.StatusCode == http.StatusUnauthorized {
			return c.login(e.LoginURL)
		}
		msg := e.Error
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		}
		return toast(msg)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return toast(fmt.Sprintf("Unexpected response: %v", err))
	}
	return nil
}

func (c *Client) login(fromServer string) *Outcome {
	target := c.loginURL
	if fromServer != "" {
		target = fromServer
	}
	return &Outcome{Kind: OutcomeLogin, URL: target}
}

func toast(msg string) *Outcome {
	return &Outcome{Kind: OutcomeToast, Message: msg}
}
