package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paysession/internal/domain/model"
	"paysession/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*HTTPGateway)(nil)

// HTTPGateway implements the PaymentGateway port against the processor's
// JSON API. Its lookup result is treated as authoritative over anything a
// webhook caller self-reports.
type HTTPGateway struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, sandbox bool) *HTTPGateway {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox-api.payprocessor.example/v1"
		} else {
			baseURL = "https://api.payprocessor.example/v1"
		}
	}
	return &HTTPGateway{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *HTTPGateway) Name() string { return "http" }

// statusResponse is the processor's payment lookup payload.
type statusResponse struct {
	Status     string `json:"status"` // DONE | READY | CANCELED | FAILED | REFUNDED
	Amount     int64  `json:"amount"`
	Method     string `json:"method"`
	ApprovedAt string `json:"approved_at"`
}

func (g *HTTPGateway) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (*model.GatewayResult, error) {
	url := g.baseURL + "/payments/" + gatewayPaymentID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("gateway: payment %s not found", gatewayPaymentID)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway http %d: %s", resp.StatusCode, string(body))
	}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	out := &model.GatewayResult{
		Status: MapStatus(sr.Status),
		Amount: sr.Amount,
		Method: sr.Method,
	}
	if sr.ApprovedAt != "" {
		if t, err := time.Parse(time.RFC3339, sr.ApprovedAt); err == nil {
			out.PaidAt = &t
		}
	}
	return out, nil
}

func (g *HTTPGateway) CancelPayment(ctx context.Context, gatewayPaymentID string, amount int64, reason string) error {
	reqBody := map[string]interface{}{
		"amount": amount,
		"reason": reason,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}

	url := g.baseURL + "/payments/" + gatewayPaymentID + "/cancel"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(b))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway cancel http %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func MapStatus(s string) model.PaymentStatus {
	switch s {
	case "DONE":
		return model.PaymentStatusCompleted
	case "CANCELED", "PARTIAL_CANCELED":
		return model.PaymentStatusCancelled
	case "FAILED", "ABORTED":
		return model.PaymentStatusFailed
	case "REFUNDED":
		return model.PaymentStatusRefunded
	default:
		return model.PaymentStatusPending
	}
}
