package domain

import (
	"context"
	"errors"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// KeyValueStore is the durable local persistence used by the engine.
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put atomically replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key written through this store.
	Clear(ctx context.Context) error
}

// RemoteStore is the remote persistence service snapshots are mirrored to.
// Both operations are idempotent upserts/reads.
type RemoteStore interface {
	// Save uploads value under key. Any error means the delivery failed.
	Save(ctx context.Context, key string, value []byte) error

	// Load downloads the value stored under key, or ErrSnapshotNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
}
