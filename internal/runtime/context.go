package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence"
)

// Context is one execution against one root. It carries the memory layer,
// the current root, the entry anchor and the reports emitted by abilities.
// A Context belongs to a single goroutine.
type Context struct {
	engine *Engine
	mem    *persistence.Memory
	system *domain.NodeAnchor
	root   *domain.NodeAnchor
	entry  domain.Anchored

	reports []any
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
}

// Root returns the anchor of the current root.
func (x *Context) Root() *domain.NodeAnchor {
	return x.root
}

// GetRoot returns the architype of the current root.
func (x *Context) GetRoot() domain.Architype {
	return x.root.Architype()
}

// Entry returns the architype this execution started from.
func (x *Context) Entry() domain.Architype {
	return x.entry.Base().Architype()
}

// Memory returns the memory layer backing this context.
func (x *Context) Memory() *persistence.Memory {
	return x.mem
}

// Types returns the engine's type table.
func (x *Context) Types() *Types {
	return x.engine.types
}

// Report appends v to the ordered report list.
func (x *Context) Report(v any) {
	x.reports = append(x.reports, v)
}

// Reports returns the values reported so far.
func (x *Context) Reports() []any {
	return slices.Clone(x.reports)
}

// Object returns the architype stored under id. Unreadable anchors are
// reported as not found.
func (x *Context) Object(ctx context.Context, id domain.ID) (domain.Architype, error) {
	a, err := x.mem.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !x.check(ctx, "object", a, domain.Read) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAnchorNotFound, id)
	}
	return a.Base().Architype(), nil
}

// NewRoot creates a persistent root that owns itself. It is written on Close.
func (x *Context) NewRoot(ctx context.Context) (*domain.Root, error) {
	n := domain.NewRootAnchor(domain.NewID())
	n.Persistent = true
	x.mem.Set(n)
	x.logger.Debug("root created", "id", n.ID)
	return n.Architype().(*domain.Root), nil
}

// Close flushes persistent changes to the store. Anchors the current root
// may not write are skipped.
func (x *Context) Close(ctx context.Context) error {
	return x.mem.Commit(ctx, func(a domain.Anchored) domain.AccessLevel {
		return x.accessOf(ctx, a)
	})
}

// Discard drops every pending change.
func (x *Context) Discard() {
	x.mem.Discard()
}
