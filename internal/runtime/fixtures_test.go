package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/require"
)

type item struct {
	domain.Node
	Name string `json:"name"`
}

func (*item) TypeName() string { return "Item" }

// special extends Item.
type special struct {
	domain.Node
	Name string `json:"name"`
}

func (*special) TypeName() string { return "Special" }

type link struct {
	domain.Edge
	Weight int `json:"weight"`
}

func (*link) TypeName() string { return "Link" }

type tourist struct {
	domain.Walker
	Log []string
}

func (*tourist) TypeName() string { return "Tourist" }

type note struct {
	domain.Object
	Text string `json:"text"`
}

func (*note) TypeName() string { return "Note" }

func nameOf(arch domain.Architype) string {
	switch v := arch.(type) {
	case *item:
		return v.Name
	case *special:
		return v.Name
	case *domain.Root:
		return "root"
	}
	return arch.TypeName()
}

// outward visits every outgoing neighbour of here.
func outward(ctx context.Context, x *runtime.Context, walker, here domain.Architype) error {
	next, err := x.EdgeRef(ctx, []domain.Architype{here}, runtime.Out, nil, nil, false)
	if err != nil {
		return err
	}
	_, err = x.Visit(ctx, walker, next...)
	return err
}

func logHere(self, here domain.Architype) {
	w := self.(*tourist)
	w.Log = append(w.Log, nameOf(here))
}

// newTypes defines the fixture types. walkerEntry overrides the Tourist's
// triggered entry abilities when given.
func newTypes(t *testing.T, walkerEntry ...runtime.Ability) *runtime.Types {
	t.Helper()
	types := runtime.NewTypes()
	require.NoError(t, types.Define(runtime.TypeSpec{Name: "Item", New: func() domain.Architype { return &item{} }}))
	require.NoError(t, types.Define(runtime.TypeSpec{Name: "Special", Extends: []string{"Item"}, New: func() domain.Architype { return &special{} }}))
	require.NoError(t, types.Define(runtime.TypeSpec{Name: "Link", New: func() domain.Architype { return &link{} }}))
	require.NoError(t, types.Define(runtime.TypeSpec{Name: "Note", New: func() domain.Architype { return &note{} }}))

	if len(walkerEntry) == 0 {
		walkerEntry = []runtime.Ability{
			{
				Name:     "start_at_root",
				Triggers: []string{domain.RootType},
				Func: func(ctx context.Context, x *runtime.Context, self, here domain.Architype) error {
					return outward(ctx, x, self, here)
				},
			},
			{
				Name:     "log_and_go",
				Triggers: []string{"Item"},
				Func: func(ctx context.Context, x *runtime.Context, self, here domain.Architype) error {
					logHere(self, here)
					return outward(ctx, x, self, here)
				},
			},
		}
	}
	require.NoError(t, types.Define(runtime.TypeSpec{
		Name:  "Tourist",
		New:   func() domain.Architype { return &tourist{} },
		Entry: walkerEntry,
	}))
	return types
}

func newEngine(t *testing.T, types *runtime.Types, opts ...runtime.Option) (*runtime.Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	opts = append([]runtime.Option{runtime.WithRetryInterval(time.Millisecond)}, opts...)
	return runtime.NewEngine(types, store, opts...), store
}

func open(t *testing.T, eng *runtime.Engine, root domain.ID) *runtime.Context {
	t.Helper()
	x, err := eng.Open(context.Background(), root, "")
	require.NoError(t, err)
	return x
}

func connect(t *testing.T, x *runtime.Context, from, to domain.Architype) {
	t.Helper()
	edges, err := x.Connect(context.Background(), []domain.Architype{from}, []domain.Architype{to}, nil, true)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func archs(xs ...domain.Architype) []domain.Architype { return xs }
