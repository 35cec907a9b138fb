// Package memstore is a zero-dependency Store backed by an in-process map,
// for tests and single-process demos run without Redis.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/tternquist/districache/internal/store"
)

// Store is an in-memory store.Store implementation. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	rows map[string]store.Row
}

// New creates an empty Store.
func New() *Store {
	return &Store{rows: make(map[string]store.Row)}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Save(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	row, exists := s.rows[key]
	if !exists {
		row = store.Row{Key: key, CreatedAt: now}
	}
	row.Value = value
	row.UpdatedAt = now
	s.rows[key] = row
	return true, nil
}

func (s *Store) Fetch(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	if !ok {
		return "", false, nil
	}
	return row.Value, true, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.rows[key]
	delete(s.rows, key)
	return existed, nil
}

func (s *Store) GetAll(_ context.Context) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Row, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) Clear(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = make(map[string]store.Row)
	return true, nil
}
