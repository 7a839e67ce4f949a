/*
Package arbor is a graph-native walker runtime.

Programs declare architypes (nodes, edges, walkers and plain objects), connect
them into per-tenant graphs and send walkers through those graphs. A walker
visits nodes in breadth-first order; at every node the walker's abilities and
the node's abilities fire according to the type of the other party. Graph
values persist lazily: anchors load on first access, and changes are flushed
at the end of each execution, subject to a per-anchor permission model.

# Concept

Every value lives behind an anchor that carries its id, its owning root and its
permission. Roots partition the graph into tenants. An execution opens a
Context on one root; everything reachable from that root and readable by it can
be traversed, and only what it may write is ever flushed back to the store.

# Usage

	type City struct {
		arbor.Node
		Name string `json:"name"`
	}

	func (*City) TypeName() string { return "City" }

	type Tourist struct {
		arbor.Walker
		Seen []string `json:"seen"`
	}

	func (*Tourist) TypeName() string { return "Tourist" }

	eng := arbor.New(arbor.WithStore(store))
	eng.MustDefine(arbor.TypeSpec{Name: "City", New: func() arbor.Architype { return &City{} }})
	eng.MustDefine(arbor.TypeSpec{
		Name: "Tourist",
		New:  func() arbor.Architype { return &Tourist{} },
		Entry: []arbor.Ability{{
			Name:     "sightsee",
			Triggers: []string{"City"},
			Func: func(ctx context.Context, x *arbor.Context, self, here arbor.Architype) error {
				t := self.(*Tourist)
				t.Seen = append(t.Seen, here.(*City).Name)
				next, err := x.EdgeRef(ctx, []arbor.Architype{here}, arbor.Out, nil, nil, false)
				if err != nil {
					return err
				}
				_, err = x.Visit(ctx, self, next...)
				return err
			},
		}},
	})

	res, err := eng.Spawn(ctx, root, entry, &Tourist{})
*/
package arbor
