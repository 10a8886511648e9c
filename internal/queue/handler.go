package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/OFFIS-RIT/netswatch/internal/scheduler"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"

	"github.com/rabbitmq/amqp091-go"
)

const retriesHeader = "x-retries"

type SyncRunner interface {
	RunOnce(ctx context.Context) (*reconcile.Report, error)
}

// Handler turns sync requests into reconcile passes.
type Handler struct {
	runner     SyncRunner
	pub        Publisher
	log        *logger.Logger
	maxRetries int
}

type NewHandlerParams struct {
	Runner SyncRunner
	// Publisher is used for the retry and dead-letter queues.
	Publisher Publisher
	Logger    *logger.Logger
	// MaxRetries defaults to 5.
	MaxRetries int
}

func NewHandler(params NewHandlerParams) (*Handler, error) {
	if params.Runner == nil || params.Publisher == nil {
		return nil, errors.New("queue handler needs a runner and a publisher")
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Handler{
		runner:     params.Runner,
		pub:        params.Publisher,
		log:        params.Logger,
		maxRetries: maxRetries,
	}, nil
}

// Handle processes one delivery and settles it. Requests that cannot be
// decoded go straight to the dead-letter queue; failed passes go through the
// retry queue until MaxRetries is reached.
func (h *Handler) Handle(ctx context.Context, msg amqp091.Delivery) {
	var req SyncRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		h.log.Error("[Queue] Undecodable sync request", "err", err)
		h.deadLetter(ctx, msg)
		return
	}
	log := h.log.With("request", req.RequestID)
	log.Info("[Queue] Received sync request", "requested_by", req.RequestedBy)

	start := time.Now()
	report, err := h.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, scheduler.ErrSkipped):
		log.Info("[Queue] Pass already in progress elsewhere, dropping request")
		h.ack(msg)
	case err != nil:
		log.Error("[Queue] Sync request failed", "err", err)
		h.retry(ctx, msg)
	default:
		log.Info("[Queue] Sync request done",
			"run", report.RunID,
			"deleted", len(report.Deleted),
			"failed", len(report.Failed),
			"duration", time.Since(start),
		)
		h.ack(msg)
	}
}

func retries(msg amqp091.Delivery) int {
	switch v := msg.Headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (h *Handler) retry(ctx context.Context, msg amqp091.Delivery) {
	n := retries(msg)
	if n >= h.maxRetries {
		h.deadLetter(ctx, msg)
		return
	}

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(n + 1)

	err := h.pub.PublishWithContext(ctx, "", SyncRetryQueue, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		h.log.Error("[Queue] Failed to publish to retry queue", "retry_queue", SyncRetryQueue, "err", err)
		h.nack(msg)
		return
	}
	h.ack(msg)
}

func (h *Handler) deadLetter(ctx context.Context, msg amqp091.Delivery) {
	h.log.Info("[Queue] Sending message to DLQ", "dlq", SyncDLQ)
	err := h.pub.PublishWithContext(ctx, "", SyncDLQ, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      msg.Headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		h.log.Error("[Queue] Failed to publish to DLQ", "dlq", SyncDLQ, "err", err)
		h.nack(msg)
		return
	}
	h.ack(msg)
}

func (h *Handler) ack(msg amqp091.Delivery) {
	if err := msg.Ack(false); err != nil {
		h.log.Error("[Queue] Failed to ack message", "err", err)
	}
}

func (h *Handler) nack(msg amqp091.Delivery) {
	if err := msg.Nack(false, true); err != nil {
		h.log.Error("[Queue] Failed to nack message", "err", err)
	}
}

// Consume feeds sync_queue into h, one message at a time, until ctx is done
// or the channel closes.
func Consume(ctx context.Context, ch *amqp091.Channel, h *Handler) error {
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(
		SyncQueue,
		"sync_queue_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return err
	}

	h.log.Info("[Queue] Listening for sync requests", "queue", SyncQueue)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("[Queue] Stopping consumer", "queue", SyncQueue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("sync queue delivery channel closed")
			}
			h.Handle(ctx, msg)
		}
	}
}
