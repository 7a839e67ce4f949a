package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Direction selects edges relative to the node they are read from.
type Direction int

const (
	// Out selects edges whose source is the node.
	Out Direction = iota
	// In selects edges whose target is the node.
	In
	// Any selects every edge.
	Any
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	case Any:
		return "any"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// EdgeFilter keeps an edge when it returns true. A nil filter keeps every edge.
type EdgeFilter func(edge domain.Architype) bool

// EdgeBuilder creates the unattached edge joining left to right.
type EdgeBuilder func(left, right *domain.NodeAnchor) (*domain.EdgeAnchor, error)

// BuildEdge returns a builder allocating edges with newEdge, or GenericEdge when nil.
func BuildEdge(newEdge func() domain.Architype, undirected bool) EdgeBuilder {
	return func(left, right *domain.NodeAnchor) (*domain.EdgeAnchor, error) {
		var arch domain.Architype = &domain.GenericEdge{}
		if newEdge != nil {
			arch = newEdge()
		}
		if domain.Bound(arch) {
			return nil, fmt.Errorf("%w: edge builder returned an anchored %s", domain.ErrInvalidOperand, arch.TypeName())
		}
		e, ok := domain.EdgeOf(arch)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an edge", domain.ErrInvalidOperand, arch.TypeName())
		}
		e.Undirected = undirected
		return e, nil
	}
}

// Connect joins every pair of the cross product of lefts and rights with a
// new edge from build. Pairs where either side lacks connect access are
// skipped. The edge is saved when either endpoint is persistent. Connect
// returns rights, or the new edges when edgesOnly is set.
func (x *Context) Connect(ctx context.Context, lefts, rights []domain.Architype, build EdgeBuilder, edgesOnly bool) ([]domain.Architype, error) {
	if build == nil {
		build = BuildEdge(nil, false)
	}
	ls, err := x.nodes(ctx, lefts)
	if err != nil {
		return nil, err
	}
	rs, err := x.nodes(ctx, rights)
	if err != nil {
		return nil, err
	}

	var edges []domain.Architype
	for _, l := range ls {
		for _, r := range rs {
			if !x.check(ctx, "connect", l, domain.Connect) || !x.check(ctx, "connect", r, domain.Connect) {
				continue
			}
			e, err := x.link(ctx, l, r, build)
			if err != nil {
				return nil, err
			}
			edges = append(edges, e.Architype())
		}
	}

	if edgesOnly {
		return edges, nil
	}
	return rights, nil
}

func (x *Context) link(ctx context.Context, l, r *domain.NodeAnchor, build EdgeBuilder) (*domain.EdgeAnchor, error) {
	// Attaching needs live edge lists on both ends.
	if _, err := l.Edges(ctx, x.mem); err != nil {
		return nil, err
	}
	if _, err := r.Edges(ctx, x.mem); err != nil {
		return nil, err
	}
	e, err := build(l, r)
	if err != nil {
		return nil, err
	}
	if err := e.Attach(l, r, e.Undirected); err != nil {
		return nil, err
	}
	if l.Persistent || r.Persistent {
		if _, err := x.Save(ctx, e.Architype()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Disconnect removes the edges of lefts whose opposite end is in rights (any
// node when rights is nil), matching dir and filter. Write access on the
// opposite end is required, and a persistent edge must also be removable
// (Write on the edge, Connect on its stored endpoints); other edges are
// skipped. Persistent edges are destroyed, transient ones only detached. It
// reports whether any edge went.
func (x *Context) Disconnect(ctx context.Context, lefts, rights []domain.Architype, dir Direction, filter EdgeFilter) (bool, error) {
	ls, err := x.nodes(ctx, lefts)
	if err != nil {
		return false, err
	}
	want, err := x.idSet(ctx, rights)
	if err != nil {
		return false, err
	}

	disconnected := false
	for _, l := range ls {
		edges, err := l.Edges(ctx, x.mem)
		if err != nil {
			return disconnected, err
		}
		for _, e := range edges {
			if !matches(e, l, dir) || (filter != nil && !filter(e.Architype())) {
				continue
			}
			opp, err := e.Opposite(ctx, x.mem, l)
			if err != nil {
				return disconnected, err
			}
			if want != nil {
				if _, ok := want[opp.ID]; !ok {
					continue
				}
			}
			if !x.check(ctx, "disconnect", opp, domain.Write) {
				continue
			}
			if e.Persistent {
				ok, err := x.edgeRemovable(ctx, "disconnect", e)
				if err != nil {
					return disconnected, err
				}
				if !ok {
					continue
				}
				if err := x.destroyEdge(ctx, e); err != nil {
					return disconnected, err
				}
			} else {
				e.Detach()
				e.MarkDestroyed()
			}
			disconnected = true
		}
	}
	return disconnected, nil
}

// EdgeRef collects the edges of sources matching dir and filter whose
// opposite end is in targets (any node when targets is nil) and readable from
// the current root. Unreadable edges are omitted. The result holds edges when
// edgesOnly is set, otherwise the opposite nodes, deduplicated in first-seen order.
func (x *Context) EdgeRef(ctx context.Context, sources []domain.Architype, dir Direction, targets []domain.Architype, filter EdgeFilter, edgesOnly bool) ([]domain.Architype, error) {
	ss, err := x.nodes(ctx, sources)
	if err != nil {
		return nil, err
	}
	want, err := x.idSet(ctx, targets)
	if err != nil {
		return nil, err
	}

	var out []domain.Architype
	seen := make(map[domain.ID]struct{})
	for _, s := range ss {
		edges, err := s.Edges(ctx, x.mem)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if !matches(e, s, dir) || (filter != nil && !filter(e.Architype())) {
				continue
			}
			opp, err := e.Opposite(ctx, x.mem, s)
			if err != nil {
				return nil, err
			}
			if want != nil {
				if _, ok := want[opp.ID]; !ok {
					continue
				}
			}
			if !x.check(ctx, "edge_ref", opp, domain.Read) {
				continue
			}

			var pick domain.Anchored = opp
			if edgesOnly {
				pick = e
			}
			id := pick.Base().ID
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, pick.Base().Architype())
		}
	}
	return out, nil
}

// matches reports whether e runs in dir as seen from n.
func matches(e *domain.EdgeAnchor, n *domain.NodeAnchor, dir Direction) bool {
	if e.Undirected {
		return true
	}
	switch dir {
	case Out:
		return e.SourceID() == n.ID
	case In:
		return e.TargetID() == n.ID
	default:
		return true
	}
}

// nodes converts operands to node anchors.
func (x *Context) nodes(ctx context.Context, archs []domain.Architype) ([]*domain.NodeAnchor, error) {
	out := make([]*domain.NodeAnchor, 0, len(archs))
	for _, arch := range archs {
		n, ok := domain.NodeOf(arch)
		if !ok {
			return nil, fmt.Errorf("%w: expected a node, got %s", domain.ErrInvalidOperand, typeName(arch))
		}
		out = append(out, n)
	}
	return out, nil
}

// idSet returns the ids of archs, or nil for a nil slice.
func (x *Context) idSet(ctx context.Context, archs []domain.Architype) (map[domain.ID]struct{}, error) {
	if archs == nil {
		return nil, nil
	}
	ns, err := x.nodes(ctx, archs)
	if err != nil {
		return nil, err
	}
	set := make(map[domain.ID]struct{}, len(ns))
	for _, n := range ns {
		set[n.ID] = struct{}{}
	}
	return set, nil
}

func typeName(arch domain.Architype) string {
	if arch == nil {
		return "nil"
	}
	return arch.TypeName()
}
