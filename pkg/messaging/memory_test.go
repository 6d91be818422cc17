package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerDelivers(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "soy.events")
	require.NoError(t, err)

	msg := Message{ID: "1", Type: "certificate.approved", Payload: json.RawMessage(`{"certificadoId":"c1"}`)}
	require.NoError(t, b.Publish(context.Background(), "soy.events", msg))
	require.NoError(t, b.Publish(context.Background(), "other", msg))

	select {
	case raw := <-ch:
		var got Message
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "certificate.approved", got.Type)
		assert.JSONEq(t, `{"certificadoId":"c1"}`, string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case raw := <-ch:
		t.Fatalf("unexpected message %s", raw)
	default:
	}
}

func TestMemoryBrokerClose(t *testing.T) {
	b := NewMemoryBroker()
	ch, err := b.Subscribe(context.Background(), "c")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	_, open := <-ch
	assert.False(t, open)
	assert.Error(t, b.Publish(context.Background(), "c", "x"))
}
