package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/netswatch/internal/util"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

const (
	SyncQueue      = "sync_queue"
	SyncRetryQueue = SyncQueue + "_retry"
	SyncDLQ        = SyncQueue + "_dlq"

	// retryDelay is how long a failed request parks in the retry queue.
	retryDelay = 30 * time.Second
)

// SyncRequest asks a worker for one reconcile pass.
type SyncRequest struct {
	RequestID   string    `json:"request_id"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// Publisher is the part of *amqp091.Channel used to send messages.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Dial connects to the broker, retrying while it is still starting up.
func Dial(ctx context.Context, url string, log *logger.Logger) (*amqp091.Connection, error) {
	attempt := 0
	return util.RetryWithContext(ctx, 5, util.LinearBackoff(2*time.Second, 10*time.Second), func(ctx context.Context) (*amqp091.Connection, error) {
		attempt++
		conn, err := amqp091.Dial(url)
		if err != nil {
			log.Warn("[Queue] Failed to connect to RabbitMQ", "attempt", attempt, "err", err)
			return nil, err
		}
		return conn, nil
	})
}

// SetupQueues declares the sync queue with its retry and dead-letter
// companions. Messages in the retry queue expire back into the sync queue.
func SetupQueues(ch *amqp091.Channel) error {
	if _, err := ch.QueueDeclare(
		SyncQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return fmt.Errorf("failed to declare %s: %w", SyncQueue, err)
	}

	if _, err := ch.QueueDeclare(SyncDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare %s: %w", SyncDLQ, err)
	}

	if _, err := ch.QueueDeclare(
		SyncRetryQueue,
		true,
		false,
		false,
		false,
		amqp091.Table{
			"x-message-ttl":             int32(retryDelay.Milliseconds()),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": SyncQueue,
		},
	); err != nil {
		return fmt.Errorf("failed to declare %s: %w", SyncRetryQueue, err)
	}

	return nil
}

// PublishSync enqueues a reconcile request and returns its request id.
func PublishSync(ctx context.Context, pub Publisher, requestedBy string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to create request id: %w", err)
	}
	body, err := json.Marshal(SyncRequest{
		RequestID:   id,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	err = pub.PublishWithContext(ctx, "", SyncQueue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		MessageId:    id,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish sync request: %w", err)
	}
	return id, nil
}
