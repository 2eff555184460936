// Package payment is the client for the external payment collaborator.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/ticket-upgrade-agent/internal/domain"
)

// Status is the collaborator's verdict on a charge.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ChargeRequest asks the collaborator to capture amount for an order.
type ChargeRequest struct {
	OrderID  string       `json:"orderId"`
	Amount   domain.Money `json:"amount"`
	Currency string       `json:"currency"`
}

// ChargeResult is the collaborator's response.
type ChargeResult struct {
	Status        Status `json:"status"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message,omitempty"`
}

// Gateway captures payments.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// ErrNotConfigured is returned by the disabled gateway.
var ErrNotConfigured = errors.New("payment collaborator not configured")

// Disabled is used when no payment collaborator is configured.
type Disabled struct{}

func (Disabled) Charge(context.Context, ChargeRequest) (ChargeResult, error) {
	return ChargeResult{}, ErrNotConfigured
}

type HTTPGatewayConfig struct {
	BaseURL    string
	Path       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPGateway posts charges as JSON. Charges are never retried here; the
// order id is sent as the Idempotency-Key so a caller-level retry is safe.
type HTTPGateway struct {
	baseURL string
	path    string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("payment base url required")
	}
	path := cfg.Path
	if path == "" {
		path = "/payments"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		path:    path,
		timeout: timeout,
		client:  client,
	}, nil
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("payment marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.baseURL+g.path, bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("payment build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.OrderID)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("payment request: %w", err)
	}
	defer resp.Body.Close()
	return decodeResult(resp)
}

func decodeResult(resp *http.Response) (ChargeResult, error) {
	if resp.StatusCode >= 500 {
		return ChargeResult{}, fmt.Errorf("payment unavailable: %s", resp.Status)
	}
	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ChargeResult{}, fmt.Errorf("payment decode response: %w", err)
	}
	switch result.Status {
	case StatusSucceeded:
		if result.TransactionID == "" {
			return ChargeResult{}, fmt.Errorf("payment succeeded without a transaction id")
		}
	case StatusFailed:
	default:
		return ChargeResult{}, fmt.Errorf("payment returned unknown status %q (%s)", result.Status, resp.Status)
	}
	return result, nil
}
