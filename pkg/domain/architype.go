package domain

// Architype is a user-defined graph value. Concrete types embed one of Node,
// Edge, Walker or Object and name themselves with TypeName, which is the tag
// used for ability trigger matching.
type Architype interface {
	TypeName() string

	archKind() Kind
	anchor() Anchored
	bind(Anchored)
}

// Node is embedded by node architypes.
type Node struct {
	a *NodeAnchor
}

func (*Node) archKind() Kind { return KindNode }

func (n *Node) anchor() Anchored {
	if n.a == nil {
		return nil
	}
	return n.a
}

func (n *Node) bind(a Anchored) { n.a = a.(*NodeAnchor) }

// Edge is embedded by edge architypes.
type Edge struct {
	a *EdgeAnchor
}

func (*Edge) archKind() Kind { return KindEdge }

func (e *Edge) anchor() Anchored {
	if e.a == nil {
		return nil
	}
	return e.a
}

func (e *Edge) bind(a Anchored) { e.a = a.(*EdgeAnchor) }

// Walker is embedded by walker architypes.
type Walker struct {
	a *WalkerAnchor
}

func (*Walker) archKind() Kind { return KindWalker }

func (w *Walker) anchor() Anchored {
	if w.a == nil {
		return nil
	}
	return w.a
}

func (w *Walker) bind(a Anchored) { w.a = a.(*WalkerAnchor) }

// Object is embedded by architypes that live outside the graph.
type Object struct {
	a *ObjectAnchor
}

func (*Object) archKind() Kind { return KindObject }

func (o *Object) anchor() Anchored {
	if o.a == nil {
		return nil
	}
	return o.a
}

func (o *Object) bind(a Anchored) { o.a = a.(*ObjectAnchor) }

// KindOf returns the anchor kind an architype produces.
func KindOf(arch Architype) Kind {
	return arch.archKind()
}

// Bound reports whether arch already has an anchor.
func Bound(arch Architype) bool {
	return arch.anchor() != nil
}

// Built-in type names.
const (
	RootType        = "Root"
	GenericEdgeType = "GenericEdge"
)

// Root marks the top of an isolated subgraph.
type Root struct {
	Node
}

func (*Root) TypeName() string { return RootType }

// GenericEdge is the default untyped edge.
type GenericEdge struct {
	Edge
}

func (*GenericEdge) TypeName() string { return GenericEdgeType }

// NewRootAnchor creates a transient root anchor with a fixed id that owns itself.
func NewRootAnchor(id ID) *NodeAnchor {
	root := &Root{}
	n := &NodeAnchor{Anchor: Anchor{
		ID:     id,
		Kind:   KindNode,
		Type:   RootType,
		RootID: id,
		arch:   root,
	}}
	root.bind(n)
	return n
}
