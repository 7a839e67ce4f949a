package persistence

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// DefaultCommitTries bounds the attempts made for one commit.
const DefaultCommitTries = 3

// Gate reports the access level the committing root holds on an anchor.
// A nil Gate grants Write on everything.
type Gate func(domain.Anchored) domain.AccessLevel

// Memory is the per-execution anchor cache. It is safe for concurrent use,
// but the anchors it hands out are not.
type Memory struct {
	store   ports.AnchorStore
	factory Factory

	mu       sync.Mutex
	anchors  map[domain.ID]domain.Anchored
	synced   map[domain.ID]*syncedImage
	removed  map[domain.ID]struct{}
	removals []domain.ID
	graves   map[domain.ID]domain.Anchored

	loads singleflight.Group

	rootID   domain.ID
	tries    uint
	interval time.Duration
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
}

// syncedImage is the last record known to match the store.
type syncedImage struct {
	rec  *domain.Record
	data []byte
}

// Option configures Memory.
type Option func(*Memory)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers hooks notified on commit and denied writes.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Memory) {
		m.hooks = hooks
	}
}

// WithCommitTries sets how many times a transient commit failure is attempted.
func WithCommitTries(n uint) Option {
	return func(m *Memory) {
		if n > 0 {
			m.tries = n
		}
	}
}

// WithRetryInterval sets the initial backoff between commit attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(m *Memory) {
		m.interval = d
	}
}

// WithRootID tags events emitted by this memory with the executing root.
func WithRootID(id domain.ID) Option {
	return func(m *Memory) {
		m.rootID = id
	}
}

// NewMemory creates an empty cache over store.
func NewMemory(store ports.AnchorStore, factory Factory, opts ...Option) *Memory {
	m := &Memory{
		store:    store,
		factory:  factory,
		anchors:  make(map[domain.ID]domain.Anchored),
		synced:   make(map[domain.ID]*syncedImage),
		removed:  make(map[domain.ID]struct{}),
		graves:   make(map[domain.ID]domain.Anchored),
		tries:    DefaultCommitTries,
		interval: 50 * time.Millisecond,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type loaded struct {
	anchor domain.Anchored
	image  *syncedImage
}

// Get returns the anchor for id, loading it from the store on a miss.
// Destroyed ids are reported as domain.ErrAnchorNotFound.
func (m *Memory) Get(ctx context.Context, id domain.ID) (domain.Anchored, error) {
	m.mu.Lock()
	if _, gone := m.removed[id]; gone {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrAnchorNotFound, id)
	}
	if a, ok := m.anchors[id]; ok {
		m.mu.Unlock()
		return a, nil
	}
	m.mu.Unlock()

	v, err, _ := m.loads.Do(string(id), func() (any, error) {
		return m.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	l := v.(*loaded)

	m.mu.Lock()
	defer m.mu.Unlock()
	// A Remove that raced with the load wins.
	if _, gone := m.removed[id]; gone {
		return nil, fmt.Errorf("%w: %s", domain.ErrAnchorNotFound, id)
	}
	if a, ok := m.anchors[id]; ok {
		return a, nil
	}
	m.anchors[id] = l.anchor
	m.synced[id] = l.image
	return l.anchor, nil
}

func (m *Memory) load(ctx context.Context, id domain.ID) (*loaded, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAnchorNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAnchorNotFound, id)
		}
		return nil, fmt.Errorf("failed to load anchor %s: %w", id, err)
	}
	a, err := Decode(m.factory, rec)
	if err != nil {
		return nil, err
	}
	image, err := imageOf(a)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("anchor loaded", "id", id, "type", rec.Type)
	return &loaded{anchor: a, image: image}, nil
}

// Resolve implements domain.Resolver.
func (m *Memory) Resolve(ctx context.Context, id domain.ID) (domain.Anchored, error) {
	return m.Get(ctx, id)
}

// Set registers a in the in-process map. It never touches the store.
// Destroyed anchors are ignored.
func (m *Memory) Set(a domain.Anchored) {
	base := a.Base()
	if base.Destroyed() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchors[base.ID] = a
}

// Has reports whether id is cached.
func (m *Memory) Has(id domain.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.anchors[id]
	return ok
}

// Remove drops id from memory, marks the cached anchor destroyed, and queues
// a durable delete for the next commit. Later reads of id fail even if a
// stale load completes afterwards.
func (m *Memory) Remove(id domain.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.anchors[id]; ok {
		a.Base().MarkDestroyed()
		delete(m.anchors, id)
		m.graves[id] = a
	}
	if _, gone := m.removed[id]; !gone {
		m.removed[id] = struct{}{}
		m.removals = append(m.removals, id)
	}
}

// Anchors returns the cached anchors ordered by id.
func (m *Memory) Anchors() []domain.Anchored {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

func (m *Memory) sortedLocked() []domain.Anchored {
	out := make([]domain.Anchored, 0, len(m.anchors))
	for _, a := range m.anchors {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.Anchored) int {
		return cmp.Compare(a.Base().ID, b.Base().ID)
	})
	return out
}

// Discard forgets every cached anchor and pending deletion.
func (m *Memory) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchors = make(map[domain.ID]domain.Anchored)
	m.synced = make(map[domain.ID]*syncedImage)
	m.removed = make(map[domain.ID]struct{})
	m.removals = nil
	m.graves = make(map[domain.ID]domain.Anchored)
}

// Commit writes every persistent anchor whose record differs from its last
// synced image, plus queued deletions, as one batch. Overwriting an anchor
// that already exists in the store needs Write access through gate, or
// Connect access when only its adjacency changed; denied anchors are skipped.
// Deleting a stored anchor needs Write. A deletion is held back while a record
// that stays in the store still references the anchor, so the stored graph
// never points at a missing id. Held-back deletions stay queued.
//
// gate may call back into Memory; no lock is held while it runs.
func (m *Memory) Commit(ctx context.Context, gate Gate) error {
	start := time.Now()

	m.mu.Lock()
	candidates := m.sortedLocked()
	synced := make(map[domain.ID]*syncedImage, len(m.synced))
	for id, image := range m.synced {
		synced[id] = image
	}
	removals := slices.Clone(m.removals)
	graves := make(map[domain.ID]domain.Anchored, len(m.graves))
	for id, a := range m.graves {
		graves[id] = a
	}
	m.mu.Unlock()

	batch, images, kept, err := m.collect(ctx, candidates, synced, gate)
	if err != nil {
		return err
	}
	batch.Remove = m.admitRemovals(ctx, removals, graves, synced, kept, gate)
	skipped := len(kept)
	if batch.Empty() {
		if skipped > 0 {
			m.emitCommit(ctx, &domain.CommitEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCommit, RootID: m.rootID},
				Skipped:   skipped,
				Duration:  time.Since(start),
			})
		}
		return nil
	}

	attempts := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := m.store.Commit(ctx, batch)
		if err == nil || errors.Is(err, domain.ErrTransient) {
			if err != nil {
				m.logger.Debug("transient commit failure", "attempt", attempts, "err", err)
			}
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(m.newBackOff()), backoff.WithMaxTries(m.tries))

	event := &domain.CommitEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCommit, RootID: m.rootID},
		Written:   len(batch.Set),
		Removed:   len(batch.Remove),
		Skipped:   skipped,
		Attempts:  attempts,
		Duration:  time.Since(start),
	}
	if err != nil {
		event.Err = err
		m.emitCommit(ctx, event)
		m.logger.Error("commit failed", "attempts", attempts, "err", err)
		return fmt.Errorf("%w: %w", domain.ErrCommitFailed, err)
	}

	m.mu.Lock()
	for id, image := range images {
		m.synced[id] = image
	}
	for _, id := range batch.Remove {
		delete(m.synced, id)
		delete(m.graves, id)
	}
	m.removals = slices.DeleteFunc(m.removals, func(id domain.ID) bool {
		return slices.Contains(batch.Remove, id)
	})
	m.mu.Unlock()

	m.emitCommit(ctx, event)
	m.logger.Debug("commit done", "written", event.Written, "removed", event.Removed, "attempts", attempts)
	return nil
}

// collect builds the writes of a commit. kept holds the ids whose stored
// record stays as it was because the gate denied the update.
func (m *Memory) collect(ctx context.Context, candidates []domain.Anchored, synced map[domain.ID]*syncedImage, gate Gate) (batch ports.Batch, images map[domain.ID]*syncedImage, kept map[domain.ID]struct{}, err error) {
	images = make(map[domain.ID]*syncedImage)
	kept = make(map[domain.ID]struct{})

	for _, a := range candidates {
		base := a.Base()
		if !base.Persistent || base.Destroyed() {
			continue
		}
		image, err := imageOf(a)
		if err != nil {
			return ports.Batch{}, nil, nil, err
		}
		prev, stored := synced[base.ID]
		if stored && bytes.Equal(prev.data, image.data) {
			continue
		}
		if stored && gate != nil {
			need := domain.Write
			if adjacencyOnly(prev.rec, image.rec) {
				need = domain.Connect
			}
			if level := gate(a); level < need {
				kept[base.ID] = struct{}{}
				m.logger.Warn("commit skipped anchor without access", "anchor", base.String(), "required", need, "granted", level)
				m.emitDenied(ctx, base, need, level)
				continue
			}
		}
		batch.Set = append(batch.Set, image.rec)
		images[base.ID] = image
	}
	return batch, images, kept, nil
}

// admitRemovals returns the queued deletions that may go out with this
// commit. Stored anchors need Write through gate. A deletion is then dropped,
// and its own stored record joins kept, while any record in kept references
// it, until no more deletions drop. Every dropped id is added to kept.
func (m *Memory) admitRemovals(ctx context.Context, removals []domain.ID, graves map[domain.ID]domain.Anchored, synced map[domain.ID]*syncedImage, kept map[domain.ID]struct{}, gate Gate) []domain.ID {
	admitted := make([]domain.ID, 0, len(removals))
	for _, id := range removals {
		if _, stored := synced[id]; stored && gate != nil {
			a, ok := graves[id]
			if !ok {
				kept[id] = struct{}{}
				m.logger.Warn("commit kept unknown removal", "id", id)
				continue
			}
			if level := gate(a); level < domain.Write {
				kept[id] = struct{}{}
				m.logger.Warn("commit skipped removal without access", "anchor", a.Base().String(), "granted", level)
				m.emitDenied(ctx, a.Base(), domain.Write, level)
				continue
			}
		}
		admitted = append(admitted, id)
	}

	pinned := make(map[domain.ID]struct{})
	pin := func(id domain.ID) {
		if img, ok := synced[id]; ok {
			for _, ref := range references(img.rec) {
				pinned[ref] = struct{}{}
			}
		}
	}
	for id := range kept {
		pin(id)
	}
	for changed := true; changed; {
		changed = false
		admitted = slices.DeleteFunc(admitted, func(id domain.ID) bool {
			if _, ok := pinned[id]; !ok {
				return false
			}
			kept[id] = struct{}{}
			pin(id)
			changed = true
			m.logger.Warn("commit kept removal still referenced", "id", id)
			return true
		})
	}
	return admitted
}

// references lists the ids a stored record points at.
func references(rec *domain.Record) []domain.ID {
	refs := slices.Clone(rec.Edges)
	for _, id := range []domain.ID{rec.Source, rec.Target} {
		if !id.IsZero() {
			refs = append(refs, id)
		}
	}
	return refs
}

func (m *Memory) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.interval
	return b
}

func (m *Memory) emitCommit(ctx context.Context, e *domain.CommitEvent) {
	if m.hooks.OnCommit != nil {
		m.hooks.OnCommit(ctx, e)
	}
}

func (m *Memory) emitDenied(ctx context.Context, target *domain.Anchor, need, granted domain.AccessLevel) {
	if m.hooks.OnAccessDenied == nil {
		return
	}
	m.hooks.OnAccessDenied(ctx, &domain.AccessEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventAccessDenied, RootID: m.rootID},
		Operation:  "commit",
		TargetID:   target.ID,
		TargetType: target.Type,
		Required:   need,
		Granted:    granted,
	})
}

func imageOf(a domain.Anchored) (*syncedImage, error) {
	rec, err := Encode(a)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}
	return &syncedImage{rec: rec, data: data}, nil
}

// adjacencyOnly reports whether next differs from prev only in its edge list.
func adjacencyOnly(prev, next *domain.Record) bool {
	probe := *next
	probe.Edges = prev.Edges
	a, errA := json.Marshal(prev)
	b, errB := json.Marshal(&probe)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}
