// Package memory is an in-process storage backend. Contents are lost on
// restart.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/storefront/internal/domain/receipt"
	"github.com/xenking/storefront/internal/storage"
)

var (
	_ storage.KV         = (*Store)(nil)
	_ receipt.Repository = (*Store)(nil)
)

// Store keeps records in maps guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	kv       map[string][]byte
	receipts []receipt.Receipt
}

// New returns an empty Store.
func New() *Store {
	return &Store{kv: make(map[string][]byte)}
}

// Get implements storage.KV.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.kv[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return slices.Clone(v), nil
}

// Set implements storage.KV.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kv[key] = slices.Clone(value)
	return nil
}

// Delete implements storage.KV. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.kv, key)
	return nil
}

// Create implements receipt.Repository.
func (s *Store) Create(_ context.Context, r *receipt.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *r
	c.Lines = slices.Clone(r.Lines)
	s.receipts = append(s.receipts, c)
	return nil
}

// ListByUser implements receipt.Repository.
func (s *Store) ListByUser(_ context.Context, username string) ([]receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []receipt.Receipt
	for i := len(s.receipts) - 1; i >= 0; i-- {
		if r := s.receipts[i]; r.Username == username {
			r.Lines = slices.Clone(r.Lines)
			out = append(out, r)
		}
	}
	return out, nil
}
