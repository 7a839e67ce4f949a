package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Save makes arch persistent. The anchor is owned by the current root unless
// it already has an owner. Saving an edge saves both of its endpoints.
func (x *Context) Save(ctx context.Context, arch domain.Architype) (domain.Architype, error) {
	if arch == nil {
		return nil, fmt.Errorf("%w: cannot save nil", domain.ErrInvalidOperand)
	}
	a := domain.AnchorOf(arch)
	base := a.Base()
	if base.Destroyed() {
		return nil, fmt.Errorf("%w: %s", domain.ErrDestroyed, base)
	}
	if !base.Persistent {
		base.Persistent = true
		if base.RootID.IsZero() {
			base.RootID = x.root.ID
		}
		x.logger.Debug("anchor saved", "anchor", base.String())
	}
	x.mem.Set(a)

	if e, ok := a.(*domain.EdgeAnchor); ok {
		for _, resolve := range []func(context.Context, domain.Resolver) (*domain.NodeAnchor, error){e.Source, e.Target} {
			n, err := resolve(ctx, x.mem)
			if err != nil {
				return nil, err
			}
			if !n.Persistent {
				if _, err := x.Save(ctx, n.Architype()); err != nil {
					return nil, err
				}
			}
		}
	}
	return arch, nil
}

// Destroy removes arch if the current root can write it. Destroying a node
// destroys its edges first; destroying an edge detaches it from both ends.
// Without write access nothing happens. A node whose edges cannot all be
// removed (see edgeRemovable) is left in place along with every edge.
func (x *Context) Destroy(ctx context.Context, arch domain.Architype) error {
	if arch == nil {
		return fmt.Errorf("%w: cannot destroy nil", domain.ErrInvalidOperand)
	}
	a := domain.AnchorOf(arch)
	if a.Base().Destroyed() {
		return nil
	}
	if !x.check(ctx, "destroy", a, domain.Write) {
		return nil
	}

	switch t := a.(type) {
	case *domain.NodeAnchor:
		if t.ID == x.system.ID || t.ID == x.root.ID {
			return fmt.Errorf("%w: cannot destroy the current or system root", domain.ErrInvalidOperand)
		}
		edges, err := t.Edges(ctx, x.mem)
		if err != nil {
			return err
		}
		for _, e := range edges {
			ok, err := x.edgeRemovable(ctx, "destroy", e)
			if err != nil || !ok {
				return err
			}
		}
		for _, e := range edges {
			if err := x.destroyEdge(ctx, e); err != nil {
				return err
			}
		}
		x.remove(t)
	case *domain.EdgeAnchor:
		ok, err := x.edgeRemovable(ctx, "destroy", t)
		if err != nil || !ok {
			return err
		}
		return x.destroyEdge(ctx, t)
	default:
		x.remove(a)
	}
	return nil
}

// edgeRemovable reports whether the current root may delete e from the
// store. It needs Write on a persistent edge and Connect on each persistent
// endpoint, whose stored edge list would otherwise keep a dangling id.
// Denials are reported like any other access check.
func (x *Context) edgeRemovable(ctx context.Context, op string, e *domain.EdgeAnchor) (bool, error) {
	if !e.Persistent {
		return true, nil
	}
	if !x.check(ctx, op, e, domain.Write) {
		return false, nil
	}
	for _, resolve := range []func(context.Context, domain.Resolver) (*domain.NodeAnchor, error){e.Source, e.Target} {
		n, err := resolve(ctx, x.mem)
		if err != nil {
			if errors.Is(err, domain.ErrMissingReference) || errors.Is(err, domain.ErrEdgeNoTarget) {
				continue
			}
			return false, err
		}
		if n.Persistent && !x.check(ctx, op, n, domain.Connect) {
			return false, nil
		}
	}
	return true, nil
}

// destroyEdge detaches e from both endpoints, loading them so their stored
// adjacency drops e too, and removes it.
func (x *Context) destroyEdge(ctx context.Context, e *domain.EdgeAnchor) error {
	if e.Destroyed() {
		return nil
	}
	for _, resolve := range []func(context.Context, domain.Resolver) (*domain.NodeAnchor, error){e.Source, e.Target} {
		// An endpoint that is already gone has no list to clean.
		if _, err := resolve(ctx, x.mem); err != nil && !errors.Is(err, domain.ErrMissingReference) && !errors.Is(err, domain.ErrEdgeNoTarget) {
			return err
		}
	}
	e.Detach()
	x.remove(e)
	return nil
}

func (x *Context) remove(a domain.Anchored) {
	base := a.Base()
	if base.Persistent {
		x.mem.Remove(base.ID)
	}
	base.MarkDestroyed()
	x.logger.Debug("anchor destroyed", "anchor", base.String())
}
