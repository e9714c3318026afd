package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSub_DeliverToSubscriber(t *testing.T) {
	ps := NewPubSub(16)
	ch, cancel, err := ps.Subscribe(context.Background(), "events")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "events", "hello"))

	select {
	case msg := <-ch:
		assert.Equal(t, "events", msg.Channel)
		assert.Equal(t, "hello", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestPubSub_NoDeliveryAfterCancel(t *testing.T) {
	ps := NewPubSub(16)
	ch, cancel, err := ps.Subscribe(context.Background(), "events")
	require.NoError(t, err)
	cancel()

	require.NoError(t, ps.Publish(context.Background(), "events", "late"))

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")
}

func TestPubSub_ChannelIsolation(t *testing.T) {
	ps := NewPubSub(16)
	ch, cancel, err := ps.Subscribe(context.Background(), "a")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "b", "wrong channel"))

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPubSub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	ps := NewPubSub(1)
	ch, cancel, err := ps.Subscribe(context.Background(), "events")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "events", "first"))
	require.NoError(t, ps.Publish(context.Background(), "events", "dropped"))

	msg := <-ch
	assert.Equal(t, "first", msg.Payload)
	select {
	case m := <-ch:
		t.Fatalf("expected drop, got %v", m)
	case <-time.After(50 * time.Millisecond):
	}
}
