package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
)

// Engine is the high-level entry point for the arbor library.
// It owns the type table and the store, and serializes executions per root.
type Engine struct {
	runtime  *runtime.Engine
	types    *runtime.Types
	store    ports.AnchorStore
	sessions *session.Manager

	locker        ports.DistributedLocker
	lockTTL       time.Duration
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	commitTries   uint
	retryInterval time.Duration
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the durable anchor store (default: in-memory).
func WithStore(store ports.AnchorStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLocker serializes executions on the same root across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long a distributed root lock is held.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithCommitTries bounds the store attempts of a commit hitting transient failures.
func WithCommitTries(n uint) Option {
	return func(e *Engine) {
		e.commitTries = n
	}
}

// WithRetryInterval sets the initial delay between commit attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.retryInterval = d
	}
}

// New initializes an Engine. Root and GenericEdge are predefined.
func New(opts ...Option) *Engine {
	e := &Engine{types: runtime.NewTypes()}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}

	rtOpts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}
	if e.commitTries > 0 {
		rtOpts = append(rtOpts, runtime.WithCommitTries(e.commitTries))
	}
	if e.retryInterval > 0 {
		rtOpts = append(rtOpts, runtime.WithRetryInterval(e.retryInterval))
	}
	e.runtime = runtime.NewEngine(e.types, e.store, rtOpts...)

	sessOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		sessOpts = append(sessOpts, session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessOpts...)
	return e
}

// Define adds an architype to the type table.
func (e *Engine) Define(spec TypeSpec) error {
	return e.types.Define(spec)
}

// MustDefine is Define that panics on error.
func (e *Engine) MustDefine(spec TypeSpec) {
	e.types.MustDefine(spec)
}

// RegisterAbility binds fn to name for abilities declared without a Func.
func (e *Engine) RegisterAbility(name string, fn AbilityFunc) {
	e.types.RegisterAbility(name, fn)
}

// Types returns the type table.
func (e *Engine) Types() *Types {
	return e.types
}

// Store returns the durable store.
func (e *Engine) Store() ports.AnchorStore {
	return e.store
}

// NewRoot allocates a tenant root and persists it.
func (e *Engine) NewRoot(ctx context.Context) (ID, error) {
	return e.runtime.NewRoot(ctx)
}

// Open creates an unlocked execution context. The caller must Close or
// Discard it. Prefer Run, which also serializes executions per root.
func (e *Engine) Open(ctx context.Context, root, entry ID) (*Context, error) {
	return e.runtime.Open(ctx, root, entry)
}

// Run executes fn against root while holding the root's lock. Changes are
// committed when fn succeeds and discarded when it fails.
func (e *Engine) Run(ctx context.Context, root, entry ID, fn func(context.Context, *Context) error) error {
	if root.IsZero() {
		root = domain.SystemRootID
	}
	return e.sessions.WithLock(ctx, root, func(ctx context.Context) error {
		x, err := e.runtime.Open(ctx, root, entry)
		if err != nil {
			return err
		}
		if err := fn(ctx, x); err != nil {
			x.Discard()
			return err
		}
		return x.Close(ctx)
	})
}

// Result is the outcome of a spawned walker.
type Result struct {
	Walker  Architype
	Reports []any
}

// Spawn runs walker from the execution's entry anchor and returns it with
// the reports emitted along the way.
func (e *Engine) Spawn(ctx context.Context, root, entry ID, walker Architype) (*Result, error) {
	res := &Result{}
	err := e.Run(ctx, root, entry, func(ctx context.Context, x *Context) error {
		w, err := x.SpawnCall(ctx, walker, x.Entry())
		if err != nil {
			return err
		}
		res.Walker = w
		res.Reports = x.Reports()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", walker.TypeName(), err)
	}
	return res, nil
}
