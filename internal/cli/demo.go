package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

// Place is the node type of the demo graph.
type Place struct {
	arbor.Node
	Name string `json:"name"`
}

func (*Place) TypeName() string { return "Place" }

// Visitor logs every place it reaches. It ignores the place named Skip when
// it sees it as a neighbour and disengages on the place named StopAt.
type Visitor struct {
	arbor.Walker
	Skip   string   `json:"skip,omitempty"`
	StopAt string   `json:"stop_at,omitempty"`
	Log    []string `json:"log"`
}

func (*Visitor) TypeName() string { return "Visitor" }

// DefineDemo registers the demo types on eng.
func DefineDemo(eng *arbor.Engine) error {
	if err := eng.Define(arbor.TypeSpec{Name: "Place", New: func() arbor.Architype { return &Place{} }}); err != nil {
		return err
	}
	return eng.Define(arbor.TypeSpec{
		Name: "Visitor",
		New:  func() arbor.Architype { return &Visitor{} },
		Entry: []arbor.Ability{
			{Name: "depart", Triggers: []string{domain.RootType}, Func: onward},
			{Name: "log", Triggers: []string{"Place"}, Func: logPlace},
		},
	})
}

func onward(ctx context.Context, x *arbor.Context, self, here arbor.Architype) error {
	v := self.(*Visitor)
	next, err := x.EdgeRef(ctx, []arbor.Architype{here}, arbor.Out, nil, nil, false)
	if err != nil {
		return err
	}
	for _, n := range next {
		if p, ok := n.(*Place); ok && p.Name == v.Skip {
			if _, err := x.Ignore(ctx, self, p); err != nil {
				return err
			}
		}
	}
	_, err = x.Visit(ctx, self, next...)
	return err
}

func logPlace(ctx context.Context, x *arbor.Context, self, here arbor.Architype) error {
	v, p := self.(*Visitor), here.(*Place)
	v.Log = append(v.Log, p.Name)
	x.Report(p.Name)
	if p.Name == v.StopAt {
		_, err := x.Disengage(self)
		return err
	}
	return onward(ctx, x, self, here)
}

// Demo is the outcome of RunDemo.
type Demo struct {
	Root domain.ID
	Log  []string
}

// RunDemo builds root -> n1 -> n2 under a fresh tenant root and sends visitor
// through it.
func RunDemo(ctx context.Context, eng *arbor.Engine, visitor *Visitor) (*Demo, error) {
	root, err := eng.NewRoot(ctx)
	if err != nil {
		return nil, err
	}
	err = eng.Run(ctx, root, "", func(ctx context.Context, x *arbor.Context) error {
		n1, n2 := &Place{Name: "n1"}, &Place{Name: "n2"}
		if _, err := x.Connect(ctx, []arbor.Architype{x.GetRoot()}, []arbor.Architype{n1}, nil, false); err != nil {
			return err
		}
		_, err := x.Connect(ctx, []arbor.Architype{n1}, []arbor.Architype{n2}, nil, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build demo graph: %w", err)
	}

	res, err := eng.Spawn(ctx, root, "", visitor)
	if err != nil {
		return nil, err
	}
	return &Demo{Root: root, Log: res.Walker.(*Visitor).Log}, nil
}
