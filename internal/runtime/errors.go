package runtime

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// UnregisteredAbilityError is returned when an ability in the dispatch table
// has no function, neither inline nor under its name in the ability registry.
type UnregisteredAbilityError struct {
	Type    string
	Ability string
}

func (e *UnregisteredAbilityError) Error() string {
	return fmt.Sprintf("%s: %s.%s has no resolved function", domain.ErrUnregisteredAbility, e.Type, e.Ability)
}

func (e *UnregisteredAbilityError) Unwrap() error {
	return domain.ErrUnregisteredAbility
}

// AbilityError wraps an error returned by an ability body. It aborts the traversal.
type AbilityError struct {
	Type    string
	Ability string
	Phase   string
	NodeID  domain.ID
	Err     error
}

func (e *AbilityError) Error() string {
	return fmt.Sprintf("ability %s.%s failed on %s (%s): %v", e.Type, e.Ability, e.NodeID, e.Phase, e.Err)
}

func (e *AbilityError) Unwrap() error {
	return e.Err
}
