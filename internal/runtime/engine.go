package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence"
	"github.com/aretw0/arbor/pkg/ports"
)

// Engine opens execution contexts over one anchor store.
type Engine struct {
	types  *Types
	store  ports.AnchorStore
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	commitTries   uint
	retryInterval time.Duration
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
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

// WithCommitTries bounds the attempts made when a commit hits transient failures.
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

// NewEngine creates an engine.
func NewEngine(types *Types, store ports.AnchorStore, opts ...Option) *Engine {
	e := &Engine{
		types:  types,
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Types returns the type table.
func (e *Engine) Types() *Types {
	return e.types
}

// Store returns the durable store.
func (e *Engine) Store() ports.AnchorStore {
	return e.store
}

// Open creates an execution context for root. A zero root selects the system
// root. A zero entry defaults to the root; otherwise the entry must be
// readable from root.
func (e *Engine) Open(ctx context.Context, root, entry domain.ID) (*Context, error) {
	if root.IsZero() {
		root = domain.SystemRootID
	}

	memOpts := []persistence.Option{
		persistence.WithLogger(e.logger),
		persistence.WithLifecycleHooks(e.hooks),
		persistence.WithRootID(root),
	}
	if e.commitTries > 0 {
		memOpts = append(memOpts, persistence.WithCommitTries(e.commitTries))
	}
	if e.retryInterval > 0 {
		memOpts = append(memOpts, persistence.WithRetryInterval(e.retryInterval))
	}
	mem := persistence.NewMemory(e.store, e.types, memOpts...)

	system, err := e.systemRoot(ctx, mem)
	if err != nil {
		return nil, err
	}

	x := &Context{
		engine: e,
		mem:    mem,
		system: system,
		root:   system,
		logger: e.logger.With("root_id", root),
		hooks:  e.hooks,
	}

	if root != domain.SystemRootID {
		a, err := mem.Get(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("failed to open root %s: %w", root, err)
		}
		n, ok := a.(*domain.NodeAnchor)
		if !ok || !n.IsRoot() {
			return nil, fmt.Errorf("%w: %s is not a root", domain.ErrInvalidOperand, root)
		}
		x.root = n
	}

	x.entry = x.root
	if !entry.IsZero() && entry != root {
		arch, err := x.Object(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s: %w", entry, err)
		}
		x.entry = domain.AnchorOf(arch)
	}
	return x, nil
}

// systemRoot loads the system root, creating it on first use.
func (e *Engine) systemRoot(ctx context.Context, mem *persistence.Memory) (*domain.NodeAnchor, error) {
	a, err := mem.Get(ctx, domain.SystemRootID)
	switch {
	case err == nil:
		n, ok := a.(*domain.NodeAnchor)
		if !ok {
			return nil, fmt.Errorf("%w: system root is a %s", domain.ErrInvalidOperand, a.Base().Kind)
		}
		return n, nil
	case errors.Is(err, domain.ErrAnchorNotFound):
		n := domain.NewRootAnchor(domain.SystemRootID)
		n.Persistent = true
		mem.Set(n)
		e.logger.Debug("system root created")
		return n, nil
	default:
		return nil, fmt.Errorf("failed to load system root: %w", err)
	}
}

// NewRoot allocates a tenant root and commits it.
func (e *Engine) NewRoot(ctx context.Context) (domain.ID, error) {
	x, err := e.Open(ctx, domain.SystemRootID, "")
	if err != nil {
		return "", err
	}
	root, err := x.NewRoot(ctx)
	if err != nil {
		x.Discard()
		return "", err
	}
	if err := x.Close(ctx); err != nil {
		return "", err
	}
	return domain.AnchorOf(root).Base().ID, nil
}
