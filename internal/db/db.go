// Package db defines the key-value store contract used by the embedding
// cache, with a Redis implementation under db/redis.
package db

import (
	"context"
	"time"
)

// Store is the key-value facade. Consumers depend on the narrow
// sub-interfaces below.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
