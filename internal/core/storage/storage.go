// Package storage persists framed entity snapshots by key.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: key not found")

// Storage is a flat key/value store of opaque snapshot blobs. Implementations
// are safe for concurrent use.
type Storage interface {
	// Save creates or replaces the value at key.
	Save(ctx context.Context, key string, value []byte) error
	// Load returns ErrNotFound for unknown keys.
	Load(ctx context.Context, key string) ([]byte, error)
	// Delete is a no-op for unknown keys.
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys in ascending order.
	Keys(ctx context.Context) ([]string, error)

	Statistics() Statistics
	Close() error
}

// BatchedStorage saves several values at once.
type BatchedStorage interface {
	Storage

	BatchSave(ctx context.Context, values map[string][]byte) error
}

// Statistics counts operations since the store was opened.
type Statistics struct {
	Reads   uint64 `json:"reads"`
	Writes  uint64 `json:"writes"`
	Deletes uint64 `json:"deletes"`
	Misses  uint64 `json:"misses"`
}
