package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// AnchorStore is the durable tier behind the memory layer. Records are keyed
// by the string form of their id.
type AnchorStore interface {
	// Get loads the record for id.
	// Returns domain.ErrAnchorNotFound if the id does not exist.
	Get(ctx context.Context, id domain.ID) (*domain.Record, error)

	// Commit applies every set and remove of the batch as one logical
	// transaction. Retryable failures wrap domain.ErrTransient.
	Commit(ctx context.Context, batch Batch) error

	// List returns the ids of all stored records.
	List(ctx context.Context) ([]domain.ID, error)
}

// Batch groups the writes of one commit.
type Batch struct {
	Set    []*domain.Record
	Remove []domain.ID
}

// Empty reports whether the batch carries no work.
func (b Batch) Empty() bool {
	return len(b.Set) == 0 && len(b.Remove) == 0
}

// Len returns the number of operations in the batch.
func (b Batch) Len() int {
	return len(b.Set) + len(b.Remove)
}
