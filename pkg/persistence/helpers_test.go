package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/require"
)

type city struct {
	domain.Node
	Name    string    `json:"name"`
	Pop     int       `json:"pop"`
	Founded time.Time `json:"founded"`
}

func (*city) TypeName() string { return "City" }

type road struct {
	domain.Edge
	Km float64 `json:"km"`
}

func (*road) TypeName() string { return "Road" }

var factory = persistence.FactoryFunc(func(name string) (domain.Architype, error) {
	switch name {
	case "City":
		return &city{}, nil
	case "Road":
		return &road{}, nil
	case domain.RootType:
		return &domain.Root{}, nil
	}
	return nil, domain.ErrUnknownType
})

func persist(a domain.Anchored) domain.Anchored {
	a.Base().Persistent = true
	a.Base().RootID = domain.SystemRootID
	return a
}

func newCity(name string, pop int) (*city, *domain.NodeAnchor) {
	c := &city{Name: name, Pop: pop}
	n, _ := domain.NodeOf(c)
	persist(n)
	return c, n
}

func link(t *testing.T, from, to *domain.NodeAnchor, km float64) *domain.EdgeAnchor {
	t.Helper()
	e, _ := domain.EdgeOf(&road{Km: km})
	persist(e)
	require.NoError(t, e.Attach(from, to, false))
	return e
}

// flakyStore fails the first n commits with err.
type flakyStore struct {
	ports.AnchorStore

	mu       sync.Mutex
	failures int
	err      error
	commits  int
}

func newFlakyStore(failures int, err error) *flakyStore {
	return &flakyStore{AnchorStore: memory.NewStore(), failures: failures, err: err}
}

func (s *flakyStore) Commit(ctx context.Context, batch ports.Batch) error {
	s.mu.Lock()
	s.commits++
	fail := s.commits <= s.failures
	s.mu.Unlock()
	if fail {
		return s.err
	}
	return s.AnchorStore.Commit(ctx, batch)
}

func (s *flakyStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}
