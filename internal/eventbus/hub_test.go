package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan eventbus.Event) eventbus.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return eventbus.Event{}
}

func TestPublish_TopicFiltering(t *testing.T) {
	h := eventbus.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := h.Subscribe(ctx, 4)
	a := h.SubscribeTopic(ctx, "analysis:a", 4)
	b := h.SubscribeTopic(ctx, "analysis:b", 4)

	h.Publish(eventbus.Event{Type: "progress", Topic: "analysis:a", Data: 10})

	got := recv(t, a)
	assert.Equal(t, "progress", got.Type)
	assert.NotZero(t, got.Timestamp)
	assert.Equal(t, "analysis:a", recv(t, all).Topic)

	select {
	case evt := <-b:
		t.Fatalf("unexpected event on other topic: %+v", evt)
	default:
	}
}

func TestPublish_DropsForSlowSubscriber(t *testing.T) {
	h := eventbus.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, 1)
	h.Publish(eventbus.Event{Type: "one"})
	h.Publish(eventbus.Event{Type: "two"})

	assert.Equal(t, "one", recv(t, ch).Type)
	select {
	case evt := <-ch:
		t.Fatalf("expected drop, got %+v", evt)
	default:
	}
}

func TestSubscribe_ClosesOnCancel(t *testing.T) {
	h := eventbus.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx, 1)
	assert.Equal(t, 1, h.Subscribers())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestNilHub_PublishIsNoop(t *testing.T) {
	var h *eventbus.Hub
	assert.NotPanics(t, func() { h.Publish(eventbus.Event{Type: "x"}) })
}

func TestNilHub_SubscribeClosesOnCancel(t *testing.T) {
	var h *eventbus.Hub
	ctx, cancel := context.WithCancel(context.Background())

	var ch <-chan eventbus.Event
	require.NotPanics(t, func() { ch = h.SubscribeTopic(ctx, "analysis:1", 1) })
	assert.Zero(t, h.Subscribers())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}
