package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates access to roots, ensuring one execution per root at a time.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.AnchorStore

	mu    sync.Mutex
	locks map[domain.ID]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given anchor store.
func NewManager(store ports.AnchorStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[domain.ID]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu, and then call release(root) after unlocking.
func (m *Manager) acquire(root domain.ID) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[root]
	if !exists {
		entry = &lockEntry{}
		m.locks[root] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(root domain.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[root]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, root)
	}
}

// active returns the number of roots with a live lock entry.
func (m *Manager) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes fn while holding the lock for root.
func (m *Manager) WithLock(ctx context.Context, root domain.ID, fn func(context.Context) error) error {
	entry := m.acquire(root)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(root)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, root.String(), m.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"root_id", root,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Exists reports whether root names a stored root node.
func (m *Manager) Exists(ctx context.Context, root domain.ID) (bool, error) {
	rec, err := m.store.Get(ctx, root)
	if errors.Is(err, domain.ErrAnchorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check root %s: %w", root, err)
	}
	return rec.Kind == domain.KindNode && rec.Type == domain.RootType, nil
}

// Store returns the underlying anchor store.
func (m *Manager) Store() ports.AnchorStore {
	return m.store
}
