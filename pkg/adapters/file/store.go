package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Store implements ports.AnchorStore using the local filesystem.
// It stores one JSON file per anchor in a configured directory.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// NewStore creates a new Store with the given base path.
// If basePath is empty, it defaults to ".arbor/anchors".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "anchors")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(id domain.ID) string {
	return filepath.Join(s.BasePath, string(id)+".json")
}

// Get reads the record file for id.
func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("id cannot be empty")
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrAnchorNotFound
		}
		return nil, fmt.Errorf("failed to read anchor file: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anchor %s: %w", id, err)
	}
	return &rec, nil
}

// Commit writes every record through a temp file and rename, then removes
// deleted ids. A crash mid-commit can leave a partial batch applied.
func (s *Store) Commit(ctx context.Context, batch ports.Batch) error {
	if batch.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure anchor directory: %w", err)
	}

	for _, rec := range batch.Set {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal anchor %s: %w", rec.ID, err)
		}
		tmp := s.path(rec.ID) + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return fmt.Errorf("failed to write anchor file: %w", err)
		}
		if err := os.Rename(tmp, s.path(rec.ID)); err != nil {
			return fmt.Errorf("failed to move anchor file into place: %w", err)
		}
	}

	for _, id := range batch.Remove {
		if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete anchor file: %w", err)
		}
	}
	return nil
}

// List returns all stored ids.
func (s *Store) List(ctx context.Context) ([]domain.ID, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.ID{}, nil
		}
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}

	var ids []domain.ID
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		ids = append(ids, domain.ID(strings.TrimSuffix(entry.Name(), ".json")))
	}
	slices.Sort(ids)
	return ids, nil
}
