// Package eventbus fans events out to in-process subscribers such as
// Server-Sent Events streams.
package eventbus

import (
	"context"
	"sync"
	"time"
)

// Event is one published notification. Topic scopes it, for example to a
// single analysis.
type Event struct {
	Type      string `json:"type"`
	Topic     string `json:"topic"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

type subscription struct {
	topic string
	ch    chan Event
}

// Hub delivers each event to every matching subscriber without blocking.
// A nil *Hub discards events, and its subscriptions receive nothing and close
// when their context is done.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// Publish sends evt to every subscriber of its topic and to every wildcard
// subscriber. Slow subscribers miss events rather than stall the publisher.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.topic != "" && sub.topic != evt.Topic {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe receives every event until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	return h.SubscribeTopic(ctx, "", buffer)
}

// SubscribeTopic receives events published on topic until ctx is done. An
// empty topic matches everything. The channel is closed on unsubscribe.
func (h *Hub) SubscribeTopic(ctx context.Context, topic string, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscription{topic: topic, ch: make(chan Event, buffer)}
	if h == nil {
		go func() {
			<-ctx.Done()
			close(sub.ch)
		}()
		return sub.ch
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
