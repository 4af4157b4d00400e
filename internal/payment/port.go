package payment

import (
	"context"

	"decision-engine/internal/models"
)

// TransferRequest is a settlement instruction for the external payment
// network. The idempotency key is stable across retries so a retried
// request can never double-spend.
type TransferRequest struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Recipient      string            `json:"recipient"`
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Port is the payment gateway contract. The engine never assumes a specific
// settlement network; concrete mobile-money operators implement this and
// are selected per policy.
type Port interface {
	Name() string
	InitiateTransfer(ctx context.Context, req TransferRequest) (string, error)
	PollStatus(ctx context.Context, handle string) (models.TransferStatus, error)
}
