package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrPaymentFailed covers declines, gateway errors and timeouts alike. The
// charge is not retried; the customer has to check out again.
var ErrPaymentFailed = errors.New("payment failed")

type ChargeRequest struct {
	AmountCents    int64
	Currency       string
	CustomerID     string
	Description    string
	IdempotencyKey string
}

type Charge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// HTTPGateway talks to a Stripe-style REST payment API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type chargeBody struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Customer    string `json:"customer"`
	Description string `json:"description,omitempty"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	payload, err := json.Marshal(chargeBody{
		Amount:      req.AmountCents,
		Currency:    req.Currency,
		Customer:    req.CustomerID,
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: gateway status %d", ErrPaymentFailed, resp.StatusCode)
	}

	var ch Charge
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPaymentFailed, err)
	}
	switch ch.Status {
	case "succeeded", "paid":
		return &ch, nil
	}
	return nil, fmt.Errorf("%w: charge status %q", ErrPaymentFailed, ch.Status)
}

// CloseIdleConnections releases pooled connections to the gateway.
func (g *HTTPGateway) CloseIdleConnections() {
	g.client.CloseIdleConnections()
}

// OfflineGateway approves every charge without calling out. It is used when
// no gateway is configured.
type OfflineGateway struct{}

func (OfflineGateway) Charge(_ context.Context, req ChargeRequest) (*Charge, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPaymentFailed)
	}
	return &Charge{ID: "offline_" + uuid.NewString(), Status: "succeeded"}, nil
}
