package ports_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestBatch_Empty(t *testing.T) {
	assert.True(t, ports.Batch{}.Empty())
	assert.Equal(t, 0, ports.Batch{}.Len())

	b := ports.Batch{
		Set:    []*domain.Record{{ID: domain.NewID()}},
		Remove: []domain.ID{domain.NewID(), domain.NewID()},
	}
	assert.False(t, b.Empty())
	assert.Equal(t, 3, b.Len())
}
