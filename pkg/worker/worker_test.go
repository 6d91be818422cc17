package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository/memory"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/messaging"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

type failingBroker struct {
	messaging.Broker
	err error
}

func (b *failingBroker) Publish(context.Context, string, interface{}) error { return b.err }

func newProcessor(t *testing.T, outbox *memory.Outbox, broker messaging.Broker) *OutboxProcessor {
	t.Helper()
	p, err := NewOutboxProcessor(outbox, broker, OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		MaxRetries:   2,
		Channel:      "soy.events",
	}, logger.Nop(), metrics.NewNop())
	require.NoError(t, err)
	return p
}

func TestOutboxProcessorPublishes(t *testing.T) {
	outbox := memory.NewOutbox()
	broker := messaging.NewMemoryBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := broker.Subscribe(ctx, "soy.events")
	require.NoError(t, err)

	require.NoError(t, outbox.Create(ctx, &model.OutboxEvent{EventType: model.EventCertificateApproved, Payload: json.RawMessage(`{"certificadoId":"c1"}`)}))

	p := newProcessor(t, outbox, broker)
	require.NoError(t, p.ProcessEvents(ctx))

	select {
	case raw := <-sub:
		var msg messaging.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, model.EventCertificateApproved, msg.Type)
		assert.JSONEq(t, `{"certificadoId":"c1"}`, string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}

	events := outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, string(model.OutboxStatusProcessed), events[0].Status)
}

func TestOutboxProcessorRetriesThenFails(t *testing.T) {
	outbox := memory.NewOutbox()
	ctx := context.Background()
	require.NoError(t, outbox.Create(ctx, &model.OutboxEvent{EventType: model.EventLegacyPublished, Payload: json.RawMessage(`{}`)}))

	p := newProcessor(t, outbox, &failingBroker{err: errors.New("redis down")})

	require.NoError(t, p.ProcessEvents(ctx))
	events := outbox.Events()
	assert.Equal(t, string(model.OutboxStatusPending), events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)

	require.NoError(t, p.ProcessEvents(ctx))
	events = outbox.Events()
	assert.Equal(t, string(model.OutboxStatusFailed), events[0].Status)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Equal(t, "redis down", *events[0].ErrorMessage)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memory.NewOutbox(), messaging.NewMemoryBroker(), OutboxProcessorConfig{}, logger.Nop(), metrics.NewNop())
	assert.Error(t, err)
}

func TestAuditCleanup(t *testing.T) {
	auditLog := memory.NewAuditLog()
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, auditLog.Create(ctx, &model.AuditLog{Action: "old", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, auditLog.Create(ctx, &model.AuditLog{Action: "new", CreatedAt: now.AddDate(0, 0, -1)}))

	w := NewAuditCleanupWorker(auditLog, memory.NewOutbox(), 30, time.Hour, logger.Nop())
	w.now = func() time.Time { return now }
	w.Cleanup(ctx)

	logs, err := auditLog.List(ctx, model.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "new", logs[0].Action)
}
