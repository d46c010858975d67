package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestInProcessPublishSubscribe(t *testing.T) {
	bus := NewInProcess()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	sent := Event{
		Type:      TypeStarted,
		Origin:    "ctx-a",
		At:        time.Now().UTC().Truncate(time.Millisecond),
		ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond),
	}
	require.NoError(t, bus.Publish(context.Background(), sent))

	got := recvEvent(t, ch)
	assert.Equal(t, sent.Type, got.Type)
	assert.Equal(t, sent.Origin, got.Origin)
	assert.True(t, sent.At.Equal(got.At))
	assert.True(t, sent.ExpiresAt.Equal(got.ExpiresAt))
}

func TestInProcessFanOut(t *testing.T) {
	bus := NewInProcess()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: TypeEnded, Origin: "ctx-a"}))

	assert.Equal(t, TypeEnded, recvEvent(t, first).Type)
	assert.Equal(t, TypeEnded, recvEvent(t, second).Type)
}

func TestEndedEventOmitsExpiry(t *testing.T) {
	bus := NewInProcess()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{
		Type:   TypeEnded,
		Origin: "ctx-a",
		At:     time.Now(),
	}))

	got := recvEvent(t, ch)
	assert.Equal(t, TypeEnded, got.Type)
	assert.True(t, got.ExpiresAt.IsZero())
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	bus := NewInProcess()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected closed channel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestDefaultTopicApplied(t *testing.T) {
	bus := NewInProcess()
	defer func() { _ = bus.Close() }()

	assert.Equal(t, DefaultTopic, bus.topic)
}
