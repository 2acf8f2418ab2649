// Package storage defines the durable key/value contract shared by the
// memory, sqlite and postgres backends.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by KV.Get when the key holds no record. Absence is
// a valid state, not a failure.
var ErrNotFound = errors.New("record not found")

// KV is a durable string-keyed record store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
