package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"decision-engine/internal/models"
)

// NotificationPublisher publishes payout lifecycle events to RabbitMQ. It
// implements the orchestrator's Notifier port. Notify is called from every
// sweep worker concurrently while the health endpoint reads the counters, so
// they are guarded by a mutex.
type NotificationPublisher struct {
	conn *RabbitMQConnection

	mu                sync.Mutex
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

// NewNotificationPublisher creates a new payout event publisher
func NewNotificationPublisher(conn *RabbitMQConnection) *NotificationPublisher {
	return &NotificationPublisher{
		conn:            conn,
		lastPublishTime: time.Now(),
	}
}

func (p *NotificationPublisher) recordFailure() {
	p.mu.Lock()
	p.messagesFailed++
	p.mu.Unlock()
}

func (p *NotificationPublisher) recordPublish() {
	p.mu.Lock()
	p.messagesPublished++
	p.lastPublishTime = time.Now()
	p.mu.Unlock()
}

// Notify publishes one payout event to the payout_events queue
func (p *NotificationPublisher) Notify(ctx context.Context, recipient string, kind models.EventKind, payload map[string]any) error {
	// Ensure the queue exists
	_, err := p.conn.Channel.QueueDeclare(
		PayoutEventsQueue, // queue name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	event := PayoutEventModel{
		Recipient: recipient,
		Kind:      kind,
		Data:      payload,
		EmittedAt: time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to marshal payout event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",                // exchange
		PayoutEventsQueue, // routing key (queue name)
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("failed to publish payout event: %w", err)
	}

	p.recordPublish()

	slog.Info("Payout event published",
		"queue", PayoutEventsQueue,
		"kind", kind,
		"recipient", recipient,
	)

	return nil
}

// GetMetrics returns publisher metrics
func (p *NotificationPublisher) GetMetrics() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]any{
		"messages_published": p.messagesPublished,
		"messages_failed":    p.messagesFailed,
		"last_publish_time":  p.lastPublishTime,
		"queue":              PayoutEventsQueue,
	}
}

// HealthCheck returns the health status of the publisher
func (p *NotificationPublisher) HealthCheck() PublisherHealthStatus {
	isHealthy := p.conn != nil && p.conn.Connection != nil && !p.conn.Connection.IsClosed()

	p.mu.Lock()
	defer p.mu.Unlock()

	return PublisherHealthStatus{
		IsHealthy:         isHealthy,
		MessagesPublished: p.messagesPublished,
		MessagesFailed:    p.messagesFailed,
		LastPublishTime:   p.lastPublishTime,
		Queue:             PayoutEventsQueue,
	}
}

// PublisherHealthStatus represents the health status of the publisher
type PublisherHealthStatus struct {
	IsHealthy         bool      `json:"is_healthy"`
	MessagesPublished int64     `json:"messages_published"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastPublishTime   time.Time `json:"last_publish_time"`
	Queue             string    `json:"queue"`
}
