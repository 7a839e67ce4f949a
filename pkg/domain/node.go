package domain

import (
	"context"
	"fmt"
	"slices"
)

// NodeAnchor owns an ordered list of edges. The list is either live or a set
// of ids awaiting resolution; the two are never populated at the same time.
type NodeAnchor struct {
	Anchor

	edges   []*EdgeAnchor
	edgeIDs []ID
}

// IsRoot reports whether the node is a root.
func (n *NodeAnchor) IsRoot() bool {
	return n.Type == RootType
}

// Resolved reports whether the edge list is live.
func (n *NodeAnchor) Resolved() bool {
	return len(n.edgeIDs) == 0
}

// Edges returns the node's edges, resolving deferred ids through r on first access.
func (n *NodeAnchor) Edges(ctx context.Context, r Resolver) ([]*EdgeAnchor, error) {
	if len(n.edgeIDs) > 0 {
		if r == nil {
			return nil, fmt.Errorf("node %s has unresolved edges and no resolver", n.ID)
		}
		resolved := make([]*EdgeAnchor, 0, len(n.edgeIDs))
		for _, id := range n.edgeIDs {
			a, err := r.Resolve(ctx, id)
			if err != nil {
				return nil, &MissingReferenceError{From: n.ID, Ref: id, Want: KindEdge, Err: err}
			}
			e, ok := a.(*EdgeAnchor)
			if !ok {
				return nil, &MissingReferenceError{From: n.ID, Ref: id, Want: KindEdge, Got: a.Base().Kind}
			}
			resolved = append(resolved, e)
		}
		n.edges = resolved
		n.edgeIDs = nil
	}
	return slices.Clone(n.edges), nil
}

// EdgeIDs returns the ids that make up the persisted adjacency: the deferred
// ids when unresolved, otherwise the persistent, live edges.
func (n *NodeAnchor) EdgeIDs() []ID {
	if len(n.edgeIDs) > 0 {
		return slices.Clone(n.edgeIDs)
	}
	ids := make([]ID, 0, len(n.edges))
	for _, e := range n.edges {
		if e.Persistent && !e.destroyed {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// HasEdge reports whether e is in the node's edge list.
func (n *NodeAnchor) HasEdge(e *EdgeAnchor) bool {
	if slices.Contains(n.edges, e) {
		return true
	}
	return slices.Contains(n.edgeIDs, e.ID)
}

func (n *NodeAnchor) attach(e *EdgeAnchor) {
	if !slices.Contains(n.edges, e) {
		n.edges = append(n.edges, e)
	}
}

func (n *NodeAnchor) detach(e *EdgeAnchor) {
	n.edges = slices.DeleteFunc(n.edges, func(x *EdgeAnchor) bool { return x == e })
	n.edgeIDs = slices.DeleteFunc(n.edgeIDs, func(id ID) bool { return id == e.ID })
}
