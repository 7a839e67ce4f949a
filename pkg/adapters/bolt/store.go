package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	bolt "go.etcd.io/bbolt"
)

var anchorsBucket = []byte("anchors")

// Store implements ports.AnchorStore on a single bbolt file.
// A batch is one read-write transaction, so it is applied all or nothing.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(anchorsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create anchors bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get loads a record.
func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	var rec *domain.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(anchorsBucket).Get([]byte(id))
		if bs == nil {
			return domain.ErrAnchorNotFound
		}
		rec = &domain.Record{}
		return json.Unmarshal(bs, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Commit applies the batch in one Update transaction.
func (s *Store) Commit(ctx context.Context, batch ports.Batch) error {
	if batch.Empty() {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(anchorsBucket)
		for _, rec := range batch.Set {
			bs, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal anchor %s: %w", rec.ID, err)
			}
			if err := b.Put([]byte(rec.ID), bs); err != nil {
				return err
			}
		}
		for _, id := range batch.Remove {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// List walks the bucket in key order.
func (s *Store) List(ctx context.Context) ([]domain.ID, error) {
	ids := []domain.ID{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(anchorsBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ids = append(ids, domain.ID(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
