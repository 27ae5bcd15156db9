package store

import (
	"context"
	"errors"
)

// Store is the persistent key-value blob store behind carts and
// pending-order snapshots. Implementations must make a Set durable
// before returning; the ledger relies on that to keep the in-memory
// cart and the persisted blob consistent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")
