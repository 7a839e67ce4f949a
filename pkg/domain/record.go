package domain

import (
	"fmt"
	"slices"
)

// Record is the logical persisted shape of an anchor. Stores encode it as
// they see fit; only round-trip fidelity is required.
type Record struct {
	ID         ID             `json:"id"`
	Kind       Kind           `json:"kind"`
	Type       string         `json:"type"`
	RootID     ID             `json:"root_id,omitempty"`
	Access     Permission     `json:"permission"`
	Edges      []ID           `json:"edges,omitempty"`
	Source     ID             `json:"source,omitempty"`
	Target     ID             `json:"target,omitempty"`
	Undirected bool           `json:"undirected,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Restore binds arch to an anchor rebuilt from rec. Adjacency is left
// deferred: edge ids on nodes and endpoint ids on edges are resolved on first
// access. Fields are not touched.
func Restore(arch Architype, rec *Record) (Anchored, error) {
	if arch.anchor() != nil {
		return nil, fmt.Errorf("%w: architype %s is already anchored", ErrInvalidOperand, arch.TypeName())
	}
	if arch.archKind() != rec.Kind {
		return nil, fmt.Errorf("%w: record %s is a %s but %s is a %s", ErrInvalidOperand, rec.ID, rec.Kind, rec.Type, arch.archKind())
	}

	base := Anchor{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Type:       rec.Type,
		Persistent: true,
		RootID:     rec.RootID,
		Access:     rec.Access.Clone(),
		arch:       arch,
	}

	var a Anchored
	switch rec.Kind {
	case KindNode:
		a = &NodeAnchor{Anchor: base, edgeIDs: slices.Clone(rec.Edges)}
	case KindEdge:
		a = &EdgeAnchor{
			Anchor:     base,
			Undirected: rec.Undirected,
			source:     endpoint{id: rec.Source},
			target:     endpoint{id: rec.Target},
		}
	case KindWalker:
		a = &WalkerAnchor{Anchor: base}
	default:
		a = &ObjectAnchor{Anchor: base}
	}
	arch.bind(a)
	return a, nil
}
