package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface for persisted user preferences. Values
// are opaque JSON documents addressed by key.
type Store interface {
	Ping(ctx context.Context) error
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte) error
}
