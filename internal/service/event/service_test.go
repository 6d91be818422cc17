package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository/memory"
)

func TestEmitWritesPendingOutboxEvent(t *testing.T) {
	outbox := memory.NewOutbox()
	svc := NewEventService(outbox)

	err := svc.Emit(context.Background(), model.EventCertificateApproved, map[string]string{"certificadoId": "c1"})
	require.NoError(t, err)

	events := outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCertificateApproved, events[0].EventType)
	assert.Equal(t, string(model.OutboxStatusPending), events[0].Status)
	assert.JSONEq(t, `{"certificadoId":"c1"}`, string(events[0].Payload))
}

func TestEmitRejectsUnmarshalablePayload(t *testing.T) {
	svc := NewEventService(memory.NewOutbox())
	err := svc.Emit(context.Background(), "x", make(chan int))
	assert.Error(t, err)
}
