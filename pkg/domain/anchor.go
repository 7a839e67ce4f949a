package domain

import (
	"context"
	"fmt"
)

// Kind distinguishes the four anchor shapes.
type Kind string

const (
	KindNode   Kind = "node"
	KindEdge   Kind = "edge"
	KindWalker Kind = "walker"
	KindObject Kind = "object"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNode, KindEdge, KindWalker, KindObject:
		return true
	}
	return false
}

// Anchor is the runtime identity wrapper around one architype value.
// It is embedded by NodeAnchor, EdgeAnchor, WalkerAnchor and ObjectAnchor.
type Anchor struct {
	ID         ID
	Kind       Kind
	Type       string
	Persistent bool
	RootID     ID
	Access     Permission

	arch      Architype
	destroyed bool
}

// Anchored is implemented by every concrete anchor.
type Anchored interface {
	Base() *Anchor
}

// Resolver loads anchors by id. The persistence layer implements it.
type Resolver interface {
	Resolve(ctx context.Context, id ID) (Anchored, error)
}

// Base returns the shared anchor header.
func (a *Anchor) Base() *Anchor {
	return a
}

// Architype returns the value owned by this anchor.
func (a *Anchor) Architype() Architype {
	return a.arch
}

// Destroyed reports whether the anchor was destroyed in this process.
func (a *Anchor) Destroyed() bool {
	return a.destroyed
}

// MarkDestroyed flags the anchor as logically destroyed.
func (a *Anchor) MarkDestroyed() {
	a.destroyed = true
}

func (a *Anchor) String() string {
	return fmt.Sprintf("%s:%s:%s", a.Kind, a.Type, a.ID)
}

// ObjectAnchor anchors a plain architype that is not part of the graph.
type ObjectAnchor struct {
	Anchor
}

// AnchorOf returns the anchor bound to arch, creating a transient one on first use.
func AnchorOf(arch Architype) Anchored {
	if a := arch.anchor(); a != nil {
		return a
	}

	base := Anchor{
		ID:   NewID(),
		Kind: arch.archKind(),
		Type: arch.TypeName(),
		arch: arch,
	}

	var a Anchored
	switch base.Kind {
	case KindNode:
		a = &NodeAnchor{Anchor: base}
	case KindEdge:
		a = &EdgeAnchor{Anchor: base}
	case KindWalker:
		a = &WalkerAnchor{Anchor: base}
	default:
		a = &ObjectAnchor{Anchor: base}
	}
	arch.bind(a)
	return a
}

// NodeOf returns arch's node anchor, or false when arch is not a node.
func NodeOf(arch Architype) (*NodeAnchor, bool) {
	if arch == nil {
		return nil, false
	}
	n, ok := AnchorOf(arch).(*NodeAnchor)
	return n, ok
}

// EdgeOf returns arch's edge anchor, or false when arch is not an edge.
func EdgeOf(arch Architype) (*EdgeAnchor, bool) {
	if arch == nil {
		return nil, false
	}
	e, ok := AnchorOf(arch).(*EdgeAnchor)
	return e, ok
}

// WalkerOf returns arch's walker anchor, or false when arch is not a walker.
func WalkerOf(arch Architype) (*WalkerAnchor, bool) {
	if arch == nil {
		return nil, false
	}
	w, ok := AnchorOf(arch).(*WalkerAnchor)
	return w, ok
}
