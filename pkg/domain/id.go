package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies an anchor. It is the canonical string form of a UUIDv7, so ids
// sort by creation time.
type ID string

// SystemRootID is the well-known id of the system-wide root.
const SystemRootID ID = "00000000-0000-0000-0000-000000000000"

// NewID returns a fresh, time-ordered anchor id.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source fails.
		return ID(uuid.NewString())
	}
	return ID(id.String())
}

// ParseID validates s and returns it in canonical form.
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid anchor id %q: %w", s, err)
	}
	return ID(id.String()), nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == ""
}
