package event

import (
	"time"

	"decision-engine/internal/models"
)

// PayoutEventModel is the payload delivered to the notification queue.
// The delivery channel (app push, SMS, voice) is owned by the consumer.
type PayoutEventModel struct {
	Recipient string           `json:"recipient"`
	Kind      models.EventKind `json:"kind"`
	Data      map[string]any   `json:"data,omitempty"`
	EmittedAt time.Time        `json:"emitted_at"`
}

const PayoutEventsQueue string = "payout_events"
