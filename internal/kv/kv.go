// Package kv defines the key-value store capability the auth-state adapter
// persists into, with a BadgerDB-backed implementation and an in-memory one
// for tests.
package kv

import (
	"context"
	"time"
)

// Store is the minimal key-value capability. Get returns found=false for a
// missing (or expired) key. A zero ttl on Set means no expiry; ttl is a
// time.Duration, so the unit travels with the type. Clear drops the whole
// keyspace, not any one session's subset.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (existed bool, err error)
	Clear(ctx context.Context) error
}
