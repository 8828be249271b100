package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is an in-process Cache used when no Redis URL is configured.
// Expired entries are dropped lazily on access.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	subs    map[string]map[chan []byte]struct{}
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		subs:    make(map[string]map[chan []byte]struct{}),
		now:     time.Now,
	}
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var n int64
	if e, ok := c.entries[key]; ok && !e.expired(now) {
		n = decodeCounter(e.value)
	}
	n++
	c.entries[key] = memoryEntry{value: encodeCounter(n), expiresAt: now.Add(expiry)}
	return n, nil
}

func (c *MemoryCache) Publish(_ context.Context, channel string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs[channel] {
		select {
		case ch <- append([]byte(nil), payload...):
		default:
		}
	}
	return nil
}

func (c *MemoryCache) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)

	c.mu.Lock()
	if c.subs[channel] == nil {
		c.subs[channel] = make(map[chan []byte]struct{})
	}
	c.subs[channel][ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs[channel], ch)
		c.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (c *MemoryCache) Close() error { return nil }

func encodeCounter(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func decodeCounter(b []byte) int64 {
	n, _ := strconv.ParseInt(string(b), 10, 64)
	return n
}
