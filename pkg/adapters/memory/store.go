package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Store implements ports.AnchorStore in memory.
// Records are kept serialized so callers never share state with the store.
// Safe for concurrent use.
type Store struct {
	data map[domain.ID][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[domain.ID][]byte),
	}
}

// Get retrieves a record from memory.
func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	s.mu.RLock()
	raw, ok := s.data[id]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrAnchorNotFound
	}

	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}
	return &rec, nil
}

// Commit applies the batch atomically with respect to other callers.
func (s *Store) Commit(ctx context.Context, batch ports.Batch) error {
	encoded := make(map[domain.ID][]byte, len(batch.Set))
	for _, rec := range batch.Set {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
		}
		encoded[rec.ID] = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, raw := range encoded {
		s.data[id] = raw
	}
	for _, id := range batch.Remove {
		delete(s.data, id)
	}
	return nil
}

// List returns the stored ids in sorted order.
func (s *Store) List(ctx context.Context) ([]domain.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.ID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
