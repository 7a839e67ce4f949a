package ports

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAnchorStoreContract runs a suite of tests to verify that an AnchorStore
// implementation adheres to the defined interface contract.
func RunAnchorStoreContract(t *testing.T, store AnchorStore) {
	ctx := context.Background()

	node := &domain.Record{
		ID:     domain.NewID(),
		Kind:   domain.KindNode,
		Type:   "Person",
		RootID: domain.SystemRootID,
		Access: domain.Permission{All: domain.Read},
		Edges:  []domain.ID{domain.NewID()},
		Fields: map[string]any{"name": "Ada", "age": 36},
	}
	edge := &domain.Record{
		ID:         domain.NewID(),
		Kind:       domain.KindEdge,
		Type:       "Knows",
		RootID:     domain.SystemRootID,
		Source:     node.ID,
		Target:     domain.NewID(),
		Undirected: true,
	}

	t.Run("Commit and Get", func(t *testing.T) {
		err := store.Commit(ctx, Batch{Set: []*domain.Record{node, edge}})
		require.NoError(t, err, "Commit should not return error")

		loaded, err := store.Get(ctx, node.ID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, node.ID, loaded.ID)
		assert.Equal(t, domain.KindNode, loaded.Kind)
		assert.Equal(t, "Person", loaded.Type)
		assert.Equal(t, domain.Read, loaded.Access.All)
		assert.Equal(t, node.Edges, loaded.Edges)
		assert.Equal(t, "Ada", loaded.Fields["name"])
		// JSON-backed stores turn integers into float64; only presence is checked.
		assert.NotNil(t, loaded.Fields["age"])

		loadedEdge, err := store.Get(ctx, edge.ID)
		require.NoError(t, err)
		assert.Equal(t, node.ID, loadedEdge.Source)
		assert.Equal(t, edge.Target, loadedEdge.Target)
		assert.True(t, loadedEdge.Undirected)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, domain.NewID())
		assert.ErrorIs(t, err, domain.ErrAnchorNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		updated := *node
		updated.Fields = map[string]any{"name": "Grace"}
		require.NoError(t, store.Commit(ctx, Batch{Set: []*domain.Record{&updated}}))

		loaded, err := store.Get(ctx, node.ID)
		require.NoError(t, err)
		assert.Equal(t, "Grace", loaded.Fields["name"])
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, node.ID)
		assert.Contains(t, ids, edge.ID)
	})

	t.Run("Remove", func(t *testing.T) {
		err := store.Commit(ctx, Batch{Remove: []domain.ID{node.ID, edge.ID}})
		require.NoError(t, err, "Remove should not return error")

		_, err = store.Get(ctx, node.ID)
		assert.ErrorIs(t, err, domain.ErrAnchorNotFound, "Get after Remove should return ErrAnchorNotFound")

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, edge.ID)
	})

	t.Run("Remove Non-Existent", func(t *testing.T) {
		err := store.Commit(ctx, Batch{Remove: []domain.ID{domain.NewID()}})
		assert.NoError(t, err)
	})

	t.Run("Empty Batch", func(t *testing.T) {
		assert.NoError(t, store.Commit(ctx, Batch{}))
	})
}
