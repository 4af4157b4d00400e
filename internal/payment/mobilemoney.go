package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"decision-engine/internal/models"
)

// MobileMoneyPort settles transfers through a mobile-money operator's HTTP
// API. The operator deduplicates on the Idempotency-Key header.
type MobileMoneyPort struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewMobileMoneyPort(name, baseURL, apiKey string, timeout time.Duration) *MobileMoneyPort {
	return &MobileMoneyPort{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *MobileMoneyPort) Name() string { return p.name }

type transferResponse struct {
	Handle string `json:"handle"`
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
}

func (p *MobileMoneyPort) InitiateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transfers", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &models.PaymentError{Code: "network", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.PaymentError{Code: "read_body", Transient: true, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		// Accepted, or deduplicated replay of an earlier accepted request.
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &models.PaymentError{Code: fmt.Sprintf("status_%d", resp.StatusCode), Transient: true}
	default:
		// 4xx other than rate limiting: invalid recipient, blocked account.
		return "", &models.PaymentError{Code: fmt.Sprintf("status_%d", resp.StatusCode), Transient: false,
			Err: fmt.Errorf("%s", string(raw))}
	}

	var payload transferResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &models.PaymentError{Code: "malformed_response", Transient: true, Err: err}
	}
	if payload.Handle == "" {
		return "", &models.PaymentError{Code: "missing_handle", Transient: true}
	}

	return payload.Handle, nil
}

func (p *MobileMoneyPort) PollStatus(ctx context.Context, handle string) (models.TransferStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transfers/"+handle, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &models.PaymentError{Code: "network", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.PaymentError{Code: "read_body", Transient: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &models.PaymentError{Code: fmt.Sprintf("status_%d", resp.StatusCode),
			Transient: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests}
	}

	var payload transferResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &models.PaymentError{Code: "malformed_response", Transient: true, Err: err}
	}

	switch payload.Status {
	case "pending", "processing":
		return models.TransferPending, nil
	case "succeeded", "completed":
		return models.TransferSucceeded, nil
	case "failed", "rejected":
		return models.TransferFailed, nil
	default:
		return "", &models.PaymentError{Code: "unknown_status", Transient: true,
			Err: fmt.Errorf("operator returned status %q", payload.Status)}
	}
}
