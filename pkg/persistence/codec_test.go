package persistence_test

import (
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Node(t *testing.T) {
	founded := time.Date(1147, time.October, 25, 0, 0, 0, 0, time.UTC)
	c := &city{Name: "Lisbon", Pop: 545000, Founded: founded}
	n, _ := domain.NodeOf(c)
	persist(n)
	n.Access.Allow(domain.NewID(), domain.Connect)
	_, other := newCity("Porto", 230000)
	e := link(t, n, other, 313)

	rec, err := persistence.Encode(n)
	require.NoError(t, err)
	assert.Equal(t, domain.KindNode, rec.Kind)
	assert.Equal(t, "City", rec.Type)
	assert.Equal(t, []domain.ID{e.ID}, rec.Edges)
	assert.Equal(t, "Lisbon", rec.Fields["name"])

	a, err := persistence.Decode(factory, rec)
	require.NoError(t, err)
	loaded, ok := a.(*domain.NodeAnchor)
	require.True(t, ok)
	assert.Equal(t, n.ID, loaded.ID)
	assert.True(t, loaded.Persistent)
	assert.False(t, loaded.Resolved(), "edges stay deferred until first access")
	assert.Equal(t, []domain.ID{e.ID}, loaded.EdgeIDs())
	assert.Equal(t, n.Access, loaded.Access)

	got := loaded.Architype().(*city)
	assert.Equal(t, "Lisbon", got.Name)
	assert.Equal(t, 545000, got.Pop)
	assert.True(t, founded.Equal(got.Founded))
}

func TestEncodeDecode_Edge(t *testing.T) {
	_, a := newCity("A", 1)
	_, b := newCity("B", 2)
	e, _ := domain.EdgeOf(&road{Km: 1.5})
	persist(e)
	require.NoError(t, e.Attach(a, b, true))

	rec, err := persistence.Encode(e)
	require.NoError(t, err)
	assert.Equal(t, a.ID, rec.Source)
	assert.Equal(t, b.ID, rec.Target)
	assert.True(t, rec.Undirected)

	decoded, err := persistence.Decode(factory, rec)
	require.NoError(t, err)
	edge := decoded.(*domain.EdgeAnchor)
	assert.Equal(t, a.ID, edge.SourceID())
	assert.Equal(t, b.ID, edge.TargetID())
	assert.True(t, edge.Undirected)
	assert.Equal(t, 1.5, edge.Architype().(*road).Km)
}

func TestDecode_Errors(t *testing.T) {
	t.Run("Unknown Type", func(t *testing.T) {
		_, err := persistence.Decode(factory, &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "Nope"})
		assert.ErrorIs(t, err, domain.ErrUnknownType)
	})

	t.Run("Invalid Kind", func(t *testing.T) {
		_, err := persistence.Decode(factory, &domain.Record{ID: domain.NewID(), Kind: "blob", Type: "City"})
		assert.ErrorIs(t, err, domain.ErrInvalidOperand)
	})

	t.Run("Kind Mismatch", func(t *testing.T) {
		_, err := persistence.Decode(factory, &domain.Record{ID: domain.NewID(), Kind: domain.KindEdge, Type: "City"})
		assert.ErrorIs(t, err, domain.ErrInvalidOperand)
	})

	t.Run("Weak Typing", func(t *testing.T) {
		a, err := persistence.Decode(factory, &domain.Record{
			ID: domain.NewID(), Kind: domain.KindNode, Type: "City",
			Fields: map[string]any{"name": "X", "pop": "42"},
		})
		require.NoError(t, err)
		assert.Equal(t, 42, a.Base().Architype().(*city).Pop)
	})
}
