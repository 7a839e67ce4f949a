package domain

import (
	"context"
	"errors"
	"fmt"
)

// endpoint is either Resolved(node) or Deferred(id), never both.
type endpoint struct {
	node *NodeAnchor
	id   ID
}

func (p endpoint) set() bool {
	return p.node != nil || !p.id.IsZero()
}

func (p endpoint) ident() ID {
	if p.node != nil {
		return p.node.ID
	}
	return p.id
}

// EdgeAnchor connects a source node to a target node.
type EdgeAnchor struct {
	Anchor

	Undirected bool

	source endpoint
	target endpoint
}

// Attach links the edge between source and target and appends it to both
// nodes' edge lists. Both nodes must have live edge lists.
func (e *EdgeAnchor) Attach(source, target *NodeAnchor, undirected bool) error {
	if source == nil || target == nil {
		return fmt.Errorf("%w: edge %s needs both endpoints", ErrInvalidOperand, e.ID)
	}
	if !source.Resolved() || !target.Resolved() {
		return errors.New("cannot attach an edge to a node with unresolved edges")
	}
	e.source = endpoint{node: source}
	e.target = endpoint{node: target}
	e.Undirected = undirected
	source.attach(e)
	target.attach(e)
	return nil
}

// Detach removes the edge from both endpoints' edge lists. Endpoints that were
// never resolved are left untouched.
func (e *EdgeAnchor) Detach() {
	if n := e.source.node; n != nil {
		n.detach(e)
	}
	if n := e.target.node; n != nil {
		n.detach(e)
	}
}

// Source resolves and returns the source node.
func (e *EdgeAnchor) Source(ctx context.Context, r Resolver) (*NodeAnchor, error) {
	return e.resolve(ctx, r, &e.source)
}

// Target resolves and returns the target node. It fails with ErrEdgeNoTarget
// when the edge has none.
func (e *EdgeAnchor) Target(ctx context.Context, r Resolver) (*NodeAnchor, error) {
	if !e.target.set() {
		return nil, fmt.Errorf("%w: %s", ErrEdgeNoTarget, e.ID)
	}
	return e.resolve(ctx, r, &e.target)
}

// SourceID returns the source id without resolving it.
func (e *EdgeAnchor) SourceID() ID { return e.source.ident() }

// TargetID returns the target id without resolving it.
func (e *EdgeAnchor) TargetID() ID { return e.target.ident() }

// Opposite returns the endpoint on the other side of n.
func (e *EdgeAnchor) Opposite(ctx context.Context, r Resolver, n *NodeAnchor) (*NodeAnchor, error) {
	if e.SourceID() == n.ID {
		return e.Target(ctx, r)
	}
	return e.Source(ctx, r)
}

func (e *EdgeAnchor) resolve(ctx context.Context, r Resolver, p *endpoint) (*NodeAnchor, error) {
	if p.node != nil {
		return p.node, nil
	}
	if p.id.IsZero() {
		return nil, fmt.Errorf("%w: edge %s has an empty endpoint", ErrEdgeNoTarget, e.ID)
	}
	if r == nil {
		return nil, fmt.Errorf("edge %s has unresolved endpoints and no resolver", e.ID)
	}
	a, err := r.Resolve(ctx, p.id)
	if err != nil {
		return nil, &MissingReferenceError{From: e.ID, Ref: p.id, Want: KindNode, Err: err}
	}
	n, ok := a.(*NodeAnchor)
	if !ok {
		return nil, &MissingReferenceError{From: e.ID, Ref: p.id, Want: KindNode, Got: a.Base().Kind}
	}
	*p = endpoint{node: n}
	return n, nil
}
