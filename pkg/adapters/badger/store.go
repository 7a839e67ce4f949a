package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/dgraph-io/badger/v4"
)

var keyPrefix = []byte("anchor/")

// Store implements ports.AnchorStore using BadgerDB.
// Keys are "anchor/<id>"; values are JSON records.
type Store struct {
	db *badger.DB
}

// New wraps an already opened database. The caller owns db.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens a database in dir. An empty dir runs in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(id domain.ID) []byte {
	return append(append([]byte{}, keyPrefix...), id...)
}

// Get loads a record.
func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	var rec domain.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrAnchorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anchor %s: %w", id, err)
	}
	return &rec, nil
}

// Commit applies the batch in a single Update transaction. Every touched key
// is read inside the transaction, so a concurrent commit that writes one of
// them first makes this one fail with badger.ErrConflict, reported as
// transient.
func (s *Store) Commit(ctx context.Context, batch ports.Batch) error {
	if batch.Empty() {
		return nil
	}
	return classify(s.db.Update(func(txn *badger.Txn) error {
		return apply(txn, batch)
	}))
}

// apply stages the batch on txn.
func apply(txn *badger.Txn, batch ports.Batch) error {
	touch := func(k []byte) error {
		// The read registers k for conflict detection.
		if _, err := txn.Get(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	}
	for _, rec := range batch.Set {
		val, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal anchor %s: %w", rec.ID, err)
		}
		k := key(rec.ID)
		if err := touch(k); err != nil {
			return err
		}
		if err := txn.Set(k, val); err != nil {
			return err
		}
	}
	for _, id := range batch.Remove {
		k := key(id)
		if err := touch(k); err != nil {
			return err
		}
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	default:
		return fmt.Errorf("failed to commit batch: %w", err)
	}
}

// List iterates keys under the anchor prefix.
func (s *Store) List(ctx context.Context) ([]domain.ID, error) {
	ids := []domain.ID{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			ids = append(ids, domain.ID(k[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}
	return ids, nil
}
