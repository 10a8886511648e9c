package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/netswatch/internal/scheduler"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acks, nacks int
}

func (f *fakeAck) Ack(uint64, bool) error        { f.acks++; return nil }
func (f *fakeAck) Nack(uint64, bool, bool) error { f.nacks++; return nil }
func (f *fakeAck) Reject(uint64, bool) error     { return nil }

type fakeRunner struct {
	err   error
	calls int
}

func (f *fakeRunner) RunOnce(context.Context) (*reconcile.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &reconcile.Report{RunID: "r1", Deleted: []string{"/a"}}, nil
}

func delivery(t *testing.T, ack *fakeAck, headers amqp091.Table) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(SyncRequest{RequestID: "req-1", RequestedBy: "api"})
	require.NoError(t, err)
	return amqp091.Delivery{Acknowledger: ack, Body: body, Headers: headers}
}

func newHandler(t *testing.T, runner SyncRunner, pub Publisher) *Handler {
	t.Helper()
	h, err := NewHandler(NewHandlerParams{Runner: runner, Publisher: pub, MaxRetries: 2})
	require.NoError(t, err)
	return h
}

func TestHandle_SuccessAcks(t *testing.T) {
	runner, pub, ack := &fakeRunner{}, &fakePublisher{}, &fakeAck{}
	h := newHandler(t, runner, pub)

	h.Handle(context.Background(), delivery(t, ack, nil))

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, pub.sent)
}

func TestHandle_SkippedAcks(t *testing.T) {
	pub, ack := &fakePublisher{}, &fakeAck{}
	h := newHandler(t, &fakeRunner{err: scheduler.ErrSkipped}, pub)

	h.Handle(context.Background(), delivery(t, ack, nil))

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, pub.sent)
}

func TestHandle_FailureGoesToRetryWithCounter(t *testing.T) {
	pub, ack := &fakePublisher{}, &fakeAck{}
	h := newHandler(t, &fakeRunner{err: errors.New("etcd down")}, pub)

	h.Handle(context.Background(), delivery(t, ack, amqp091.Table{retriesHeader: int32(1)}))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, SyncRetryQueue, pub.sent[0].key)
	assert.Equal(t, int32(2), pub.sent[0].msg.Headers[retriesHeader])
	assert.Equal(t, 1, ack.acks)
}

func TestHandle_ExhaustedRetriesGoToDLQ(t *testing.T) {
	pub, ack := &fakePublisher{}, &fakeAck{}
	h := newHandler(t, &fakeRunner{err: errors.New("etcd down")}, pub)

	h.Handle(context.Background(), delivery(t, ack, amqp091.Table{retriesHeader: int32(2)}))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, SyncDLQ, pub.sent[0].key)
	assert.Equal(t, 1, ack.acks)
}

func TestHandle_UndecodableGoesToDLQ(t *testing.T) {
	runner, pub, ack := &fakeRunner{}, &fakePublisher{}, &fakeAck{}
	h := newHandler(t, runner, pub)

	h.Handle(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{")})

	assert.Zero(t, runner.calls)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, SyncDLQ, pub.sent[0].key)
}

func TestHandle_PublishFailureRequeues(t *testing.T) {
	pub, ack := &fakePublisher{err: errors.New("channel closed")}, &fakeAck{}
	h := newHandler(t, &fakeRunner{err: errors.New("etcd down")}, pub)

	h.Handle(context.Background(), delivery(t, ack, nil))

	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
}

func TestPublishSync(t *testing.T) {
	pub := &fakePublisher{}

	id, err := PublishSync(context.Background(), pub, "master")

	require.NoError(t, err)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, SyncQueue, pub.sent[0].key)
	assert.Equal(t, id, pub.sent[0].msg.MessageId)

	var req SyncRequest
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &req))
	assert.Equal(t, id, req.RequestID)
	assert.Equal(t, "master", req.RequestedBy)
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(NewHandlerParams{Publisher: &fakePublisher{}})
	assert.Error(t, err)
}
