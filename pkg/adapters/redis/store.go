package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "arbor:"

// Store implements ports.AnchorStore using Redis.
// Each record is a JSON string under <prefix>anchor:<id>; ids are indexed in
// the <prefix>index set.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for stored anchors.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(id domain.ID) string {
	return s.prefix + "anchor:" + string(id)
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Get loads a record from Redis.
func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrAnchorNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anchor %s: %w", id, err)
	}
	return &rec, nil
}

// Commit writes the batch inside MULTI/EXEC while watching every touched key.
// A write to one of those keys by another client between WATCH and EXEC
// aborts the transaction; the error then wraps domain.ErrTransient so the
// caller can retry.
func (s *Store) Commit(ctx context.Context, batch ports.Batch) error {
	if batch.Empty() {
		return nil
	}

	payloads := make(map[domain.ID][]byte, len(batch.Set))
	keys := make([]string, 0, batch.Len())
	for _, rec := range batch.Set {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal anchor %s: %w", rec.ID, err)
		}
		payloads[rec.ID] = data
		keys = append(keys, s.key(rec.ID))
	}
	for _, id := range batch.Remove {
		keys = append(keys, s.key(id))
	}

	return classify(s.client.Watch(ctx, func(tx *backend.Tx) error {
		return s.exec(ctx, tx, batch, payloads)
	}, keys...))
}

// exec queues the batch on tx and runs it.
func (s *Store) exec(ctx context.Context, tx *backend.Tx, batch ports.Batch, payloads map[domain.ID][]byte) error {
	_, err := tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for _, rec := range batch.Set {
			pipe.Set(ctx, s.key(rec.ID), payloads[rec.ID], s.ttl)
			pipe.SAdd(ctx, s.indexKey(), string(rec.ID))
		}
		for _, id := range batch.Remove {
			pipe.Del(ctx, s.key(id))
			pipe.SRem(ctx, s.indexKey(), string(id))
		}
		return nil
	})
	return err
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backend.TxFailedErr):
		return fmt.Errorf("redis transaction aborted: %w", domain.ErrTransient)
	default:
		return fmt.Errorf("failed to commit to redis: %w", err)
	}
}

// List returns the indexed ids. With a TTL configured, ids whose key has
// expired are pruned from the index lazily.
func (s *Store) List(ctx context.Context) ([]domain.ID, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}

	ids := make([]domain.ID, 0, len(members))
	var stale []any
	for _, m := range members {
		if s.ttl > 0 {
			n, err := s.client.Exists(ctx, s.prefix+"anchor:"+m).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to check anchor %s: %w", m, err)
			}
			if n == 0 {
				stale = append(stale, m)
				continue
			}
		}
		ids = append(ids, domain.ID(m))
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired anchors: %w", err)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
