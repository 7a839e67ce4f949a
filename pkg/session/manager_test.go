package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesPerRoot(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	root := domain.NewID()

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, root, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestManager_IndependentRoots(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	a, b := domain.NewID(), domain.NewID()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, a, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		_ = manager.WithLock(ctx, b, func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on one root blocked another root")
	}
	close(release)
}

func TestManager_PropagatesError(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	boom := errors.New("boom")
	err := manager.WithLock(context.Background(), domain.NewID(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	manager := session.NewManager(memory.NewStore(),
		session.WithLocker(redis.NewLocker(client, "arbor:")),
		session.WithLockTTL(5*time.Second),
	)
	root := domain.NewID()

	err := manager.WithLock(context.Background(), root, func(context.Context) error {
		assert.True(t, mr.Exists("arbor:lock:"+root.String()))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("arbor:lock:"+root.String()))
}

func TestManager_Exists(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	root := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: domain.RootType}
	plain := &domain.Record{ID: domain.NewID(), Kind: domain.KindNode, Type: "City"}
	require.NoError(t, store.Commit(ctx, ports.Batch{Set: []*domain.Record{root, plain}}))

	manager := session.NewManager(store)

	ok, err := manager.Exists(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = manager.Exists(ctx, plain.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = manager.Exists(ctx, domain.NewID())
	require.NoError(t, err)
	assert.False(t, ok)
}
