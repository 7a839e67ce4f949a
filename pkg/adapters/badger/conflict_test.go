package badger

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommit_ConflictIsTransient(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	rec := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "City"}
	require.NoError(t, store.Commit(ctx, ports.Batch{Set: []*domain.Record{rec}}))

	txn := store.db.NewTransaction(true)
	defer txn.Discard()
	require.NoError(t, apply(txn, ports.Batch{Remove: []domain.ID{rec.ID}}))

	// Another commit writes the same key first.
	require.NoError(t, store.Commit(ctx, ports.Batch{Set: []*domain.Record{rec}}))

	err = classify(txn.Commit())
	assert.ErrorIs(t, err, domain.ErrTransient)

	_, err = store.Get(ctx, rec.ID)
	assert.NoError(t, err, "the aborted removal must leave the record in place")
}

func TestCommit_DisjointKeysDoNotConflict(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	a := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "City"}
	b := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "City"}

	txn := store.db.NewTransaction(true)
	defer txn.Discard()
	require.NoError(t, apply(txn, ports.Batch{Set: []*domain.Record{a}}))
	require.NoError(t, store.Commit(ctx, ports.Batch{Set: []*domain.Record{b}}))
	assert.NoError(t, classify(txn.Commit()))
}
