package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastMemory(store ports.AnchorStore, opts ...persistence.Option) *persistence.Memory {
	opts = append([]persistence.Option{persistence.WithRetryInterval(time.Millisecond)}, opts...)
	return persistence.NewMemory(store, factory, opts...)
}

func seed(t *testing.T, store ports.AnchorStore) (lisbon, porto *domain.NodeAnchor, route *domain.EdgeAnchor) {
	t.Helper()
	_, lisbon = newCity("Lisbon", 545000)
	_, porto = newCity("Porto", 230000)
	route = link(t, lisbon, porto, 313)

	mem := fastMemory(store)
	mem.Set(lisbon)
	mem.Set(porto)
	mem.Set(route)
	require.NoError(t, mem.Commit(context.Background(), nil))
	return lisbon, porto, route
}

func TestMemory_PersistenceRoundTrip(t *testing.T) {
	store := memory.NewStore()
	lisbon, porto, route := seed(t, store)
	ctx := context.Background()

	mem := fastMemory(store)
	a, err := mem.Get(ctx, lisbon.ID)
	require.NoError(t, err)
	n := a.(*domain.NodeAnchor)
	assert.Equal(t, lisbon.ID, n.ID)
	assert.Equal(t, domain.KindNode, n.Kind)
	assert.Equal(t, "Lisbon", n.Architype().(*city).Name)

	assert.False(t, n.Resolved())
	assert.False(t, mem.Has(route.ID), "edges are not loaded with their node")

	edges, err := n.Edges(ctx, mem)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, n.Resolved())
	assert.Equal(t, route.ID, edges[0].ID)
	assert.Equal(t, 313.0, edges[0].Architype().(*road).Km)

	target, err := edges[0].Target(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, porto.ID, target.ID)

	source, err := edges[0].Source(ctx, mem)
	require.NoError(t, err)
	assert.Same(t, n, source, "resolution goes through the cache")
}

func TestMemory_GetMissing(t *testing.T) {
	mem := fastMemory(memory.NewStore())
	_, err := mem.Get(context.Background(), domain.NewID())
	assert.ErrorIs(t, err, domain.ErrAnchorNotFound)
}

func TestMemory_MissingReference(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	dangling := domain.NewID()
	node := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "City", Edges: []domain.ID{dangling}}
	require.NoError(t, store.Commit(ctx, ports.Batch{Set: []*domain.Record{node}}))

	mem := fastMemory(store)
	a, err := mem.Get(ctx, node.ID)
	require.NoError(t, err)

	_, err = a.(*domain.NodeAnchor).Edges(ctx, mem)
	assert.ErrorIs(t, err, domain.ErrMissingReference)
	assert.ErrorIs(t, err, domain.ErrAnchorNotFound)

	var ref *domain.MissingReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, dangling, ref.Ref)
	assert.False(t, a.(*domain.NodeAnchor).Resolved(), "a failed resolution leaves the ids in place")
}

func TestMemory_WrongKindReference(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	other := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "City"}
	node := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "City", Edges: []domain.ID{other.ID}}
	edge := &domain.Record{ID: domain.NewID(), Kind: domain.KindEdge, Type: "Road", Source: node.ID, Target: domain.NewID()}
	require.NoError(t, store.Commit(ctx, ports.Batch{Set: []*domain.Record{other, node, edge}}))

	mem := fastMemory(store)
	a, err := mem.Get(ctx, node.ID)
	require.NoError(t, err)
	_, err = a.(*domain.NodeAnchor).Edges(ctx, mem)
	var ref *domain.MissingReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, domain.KindEdge, ref.Want)
	assert.Equal(t, domain.KindNode, ref.Got)

	e, err := mem.Get(ctx, edge.ID)
	require.NoError(t, err)
	_, err = e.(*domain.EdgeAnchor).Target(ctx, mem)
	assert.ErrorIs(t, err, domain.ErrMissingReference)
}

func TestMemory_RemoveTombstones(t *testing.T) {
	store := memory.NewStore()
	lisbon, _, _ := seed(t, store)
	ctx := context.Background()

	mem := fastMemory(store)
	a, err := mem.Get(ctx, lisbon.ID)
	require.NoError(t, err)

	mem.Remove(lisbon.ID)
	assert.True(t, a.Base().Destroyed())

	_, err = mem.Get(ctx, lisbon.ID)
	assert.ErrorIs(t, err, domain.ErrAnchorNotFound, "removed ids are not reloaded from the store")

	// Still durable until commit.
	_, err = store.Get(ctx, lisbon.ID)
	require.NoError(t, err)

	require.NoError(t, mem.Commit(ctx, nil))
	_, err = store.Get(ctx, lisbon.ID)
	assert.ErrorIs(t, err, domain.ErrAnchorNotFound)
}

func TestMemory_SetIsMemoryOnly(t *testing.T) {
	store := memory.NewStore()
	mem := fastMemory(store)
	_, n := newCity("Faro", 60000)
	mem.Set(n)
	assert.True(t, mem.Has(n.ID))
	assert.Equal(t, 0, store.Len())

	a, err := mem.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Same(t, n, a)
}

func TestMemory_CommitSkipsTransientAndUnchanged(t *testing.T) {
	store := newFlakyStore(0, nil)
	ctx := context.Background()

	var events []*domain.CommitEvent
	mem := fastMemory(store, persistence.WithLifecycleHooks(domain.LifecycleHooks{
		OnCommit: func(_ context.Context, e *domain.CommitEvent) { events = append(events, e) },
	}))

	_, saved := newCity("Braga", 190000)
	transient, _ := domain.NodeOf(&city{Name: "Nowhere"})
	mem.Set(saved)
	mem.Set(transient)

	require.NoError(t, mem.Commit(ctx, nil))
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Written)

	_, err := store.Get(ctx, transient.ID)
	assert.ErrorIs(t, err, domain.ErrAnchorNotFound, "transient anchors are never written")

	require.NoError(t, mem.Commit(ctx, nil))
	assert.Equal(t, 1, store.Commits(), "unchanged anchors produce no batch")

	saved.Architype().(*city).Pop++
	require.NoError(t, mem.Commit(ctx, nil))
	assert.Equal(t, 2, store.Commits())
}

func TestMemory_CommitRetries(t *testing.T) {
	transient := errors.Join(errors.New("conflict"), domain.ErrTransient)

	t.Run("Recovers", func(t *testing.T) {
		store := newFlakyStore(2, transient)
		var event *domain.CommitEvent
		mem := fastMemory(store, persistence.WithLifecycleHooks(domain.LifecycleHooks{
			OnCommit: func(_ context.Context, e *domain.CommitEvent) { event = e },
		}))
		_, n := newCity("Evora", 50000)
		mem.Set(n)

		require.NoError(t, mem.Commit(context.Background(), nil))
		assert.Equal(t, 3, store.Commits())
		require.NotNil(t, event)
		assert.Equal(t, 3, event.Attempts)
	})

	t.Run("Exhausted", func(t *testing.T) {
		store := newFlakyStore(10, transient)
		mem := fastMemory(store, persistence.WithCommitTries(2))
		_, n := newCity("Evora", 50000)
		mem.Set(n)

		err := mem.Commit(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrCommitFailed)
		assert.ErrorIs(t, err, domain.ErrTransient)
		assert.Equal(t, 2, store.Commits())
	})

	t.Run("Permanent", func(t *testing.T) {
		boom := errors.New("disk on fire")
		store := newFlakyStore(10, boom)
		mem := fastMemory(store)
		_, n := newCity("Evora", 50000)
		mem.Set(n)

		err := mem.Commit(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrCommitFailed)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, store.Commits(), "non-transient failures are not retried")
	})
}

func TestMemory_CommitGate(t *testing.T) {
	store := memory.NewStore()
	lisbon, porto, _ := seed(t, store)
	ctx := context.Background()

	level := domain.Read
	var denied []*domain.AccessEvent
	mem := fastMemory(store, persistence.WithLifecycleHooks(domain.LifecycleHooks{
		OnAccessDenied: func(_ context.Context, e *domain.AccessEvent) { denied = append(denied, e) },
	}))
	gate := func(domain.Anchored) domain.AccessLevel { return level }

	a, err := mem.Get(ctx, lisbon.ID)
	require.NoError(t, err)
	a.Base().Architype().(*city).Name = "Olisipo"

	require.NoError(t, mem.Commit(ctx, gate))
	rec, err := store.Get(ctx, lisbon.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", rec.Fields["name"], "field change without write access is dropped")
	require.Len(t, denied, 1)
	assert.Equal(t, domain.Write, denied[0].Required)

	// Connect access is enough for an adjacency-only change.
	a.Base().Architype().(*city).Name = "Lisbon"
	level = domain.Connect
	b, err := mem.Get(ctx, porto.ID)
	require.NoError(t, err)
	n, p := a.(*domain.NodeAnchor), b.(*domain.NodeAnchor)
	_, err = n.Edges(ctx, mem)
	require.NoError(t, err)
	_, err = p.Edges(ctx, mem)
	require.NoError(t, err)
	back := link(t, p, n, 313)
	mem.Set(back)

	require.NoError(t, mem.Commit(ctx, gate))
	rec, err = store.Get(ctx, lisbon.ID)
	require.NoError(t, err)
	assert.Contains(t, rec.Edges, back.ID)
	_, err = store.Get(ctx, back.ID)
	assert.NoError(t, err, "new anchors are always written")
}

func TestMemory_CommitGateRemovals(t *testing.T) {
	ctx := context.Background()

	// load brings the seeded graph into a fresh memory with live adjacency.
	load := func(t *testing.T, mem *persistence.Memory, lisbon, porto, route domain.ID) (*domain.NodeAnchor, *domain.NodeAnchor, *domain.EdgeAnchor) {
		t.Helper()
		var out [3]domain.Anchored
		for i, id := range []domain.ID{lisbon, porto, route} {
			a, err := mem.Get(ctx, id)
			require.NoError(t, err)
			out[i] = a
		}
		l, p, e := out[0].(*domain.NodeAnchor), out[1].(*domain.NodeAnchor), out[2].(*domain.EdgeAnchor)
		for _, n := range []*domain.NodeAnchor{l, p} {
			_, err := n.Edges(ctx, mem)
			require.NoError(t, err)
		}
		_, err := e.Source(ctx, mem)
		require.NoError(t, err)
		_, err = e.Target(ctx, mem)
		require.NoError(t, err)
		return l, p, e
	}
	gateOf := func(levels map[domain.ID]domain.AccessLevel) persistence.Gate {
		return func(a domain.Anchored) domain.AccessLevel {
			if level, ok := levels[a.Base().ID]; ok {
				return level
			}
			return domain.Write
		}
	}
	// reloads checks that every stored node still resolves its edges.
	reloads := func(t *testing.T, store ports.AnchorStore, ids ...domain.ID) {
		t.Helper()
		fresh := fastMemory(store)
		for _, id := range ids {
			a, err := fresh.Get(ctx, id)
			require.NoError(t, err)
			_, err = a.(*domain.NodeAnchor).Edges(ctx, fresh)
			assert.NoError(t, err, "stored adjacency of %s must resolve", id)
		}
	}

	t.Run("Removal Needs Write", func(t *testing.T) {
		store := memory.NewStore()
		lisbon, porto, route := seed(t, store)
		var denied []*domain.AccessEvent
		mem := fastMemory(store, persistence.WithLifecycleHooks(domain.LifecycleHooks{
			OnAccessDenied: func(_ context.Context, e *domain.AccessEvent) { denied = append(denied, e) },
		}))
		_, _, e := load(t, mem, lisbon.ID, porto.ID, route.ID)
		e.Detach()
		mem.Remove(e.ID)

		require.NoError(t, mem.Commit(ctx, gateOf(map[domain.ID]domain.AccessLevel{route.ID: domain.Read})))
		_, err := store.Get(ctx, route.ID)
		assert.NoError(t, err, "the edge stays without write access")
		require.NotEmpty(t, denied)
		assert.Equal(t, route.ID, denied[0].TargetID)
		assert.Equal(t, domain.Write, denied[0].Required)
		reloads(t, store, lisbon.ID, porto.ID)
	})

	t.Run("Removal Held While Referenced", func(t *testing.T) {
		store := memory.NewStore()
		lisbon, porto, route := seed(t, store)
		var events []*domain.CommitEvent
		mem := fastMemory(store, persistence.WithLifecycleHooks(domain.LifecycleHooks{
			OnCommit: func(_ context.Context, e *domain.CommitEvent) { events = append(events, e) },
		}))
		_, _, e := load(t, mem, lisbon.ID, porto.ID, route.ID)
		e.Detach()
		mem.Remove(e.ID)

		// Lisbon keeps its stored edge list, so the edge must stay too.
		require.NoError(t, mem.Commit(ctx, gateOf(map[domain.ID]domain.AccessLevel{lisbon.ID: domain.Read})))
		_, err := store.Get(ctx, route.ID)
		assert.NoError(t, err)
		rec, err := store.Get(ctx, lisbon.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.ID{route.ID}, rec.Edges)
		require.NotEmpty(t, events)
		assert.Equal(t, 0, events[len(events)-1].Removed)
		assert.Equal(t, 2, events[len(events)-1].Skipped)
		reloads(t, store, lisbon.ID, porto.ID)
	})

	t.Run("Node Removal Held By Kept Edge", func(t *testing.T) {
		store := memory.NewStore()
		lisbon, porto, route := seed(t, store)
		mem := fastMemory(store)
		_, p, e := load(t, mem, lisbon.ID, porto.ID, route.ID)
		e.Detach()
		mem.Remove(e.ID)
		mem.Remove(p.ID)

		require.NoError(t, mem.Commit(ctx, gateOf(map[domain.ID]domain.AccessLevel{route.ID: domain.Connect})))
		_, err := store.Get(ctx, porto.ID)
		assert.NoError(t, err, "the kept edge still points at porto")
		reloads(t, store, lisbon.ID, porto.ID)
	})

	t.Run("Consistent Batch Goes Out", func(t *testing.T) {
		store := memory.NewStore()
		lisbon, porto, route := seed(t, store)
		mem := fastMemory(store)
		_, _, e := load(t, mem, lisbon.ID, porto.ID, route.ID)
		e.Detach()
		mem.Remove(e.ID)

		require.NoError(t, mem.Commit(ctx, gateOf(map[domain.ID]domain.AccessLevel{lisbon.ID: domain.Connect, porto.ID: domain.Connect})))
		_, err := store.Get(ctx, route.ID)
		assert.ErrorIs(t, err, domain.ErrAnchorNotFound)
		reloads(t, store, lisbon.ID, porto.ID)
	})
}

func TestMemory_ConcurrentGet(t *testing.T) {
	store := memory.NewStore()
	lisbon, _, _ := seed(t, store)
	mem := fastMemory(store)

	var wg sync.WaitGroup
	results := make([]domain.Anchored, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := mem.Get(context.Background(), lisbon.ID)
			if err == nil {
				results[i] = a
			}
		}(i)
	}
	wg.Wait()

	for _, a := range results {
		assert.Same(t, results[0], a)
	}
}

func TestMemory_Discard(t *testing.T) {
	store := memory.NewStore()
	mem := fastMemory(store)
	_, n := newCity("Sines", 14000)
	mem.Set(n)
	mem.Discard()

	assert.Empty(t, mem.Anchors())
	require.NoError(t, mem.Commit(context.Background(), nil))
	assert.Equal(t, 0, store.Len())
}
