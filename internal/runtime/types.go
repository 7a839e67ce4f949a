package runtime

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// AbilityFunc is the body of an ability. self is the architype that owns the
// ability and other is the party on the opposite side of the dispatch: the
// visited node for walker abilities, the visiting walker for node abilities.
type AbilityFunc func(ctx context.Context, x *Context, self, other domain.Architype) error

// Ability is one entry of a type's dispatch table.
type Ability struct {
	// Name identifies the ability in events and errors. When Func is nil the
	// function is resolved from the ability registry under this name.
	Name string

	// Triggers lists the type names of the other party the ability reacts
	// to. An empty list makes the ability untriggered.
	Triggers []string

	Func AbilityFunc
}

// Untriggered reports whether the ability has no trigger type.
func (a Ability) Untriggered() bool {
	return len(a.Triggers) == 0
}

// TypeSpec declares an architype.
type TypeSpec struct {
	Name string

	// Kind is derived from New when left empty.
	Kind domain.Kind

	// Extends names already defined types this one counts as for trigger matching.
	Extends []string

	// New allocates a zero value. It is used to restore stored anchors.
	New func() domain.Architype

	// Entry and Exit are matched in declaration order.
	Entry []Ability
	Exit  []Ability
}

// Types is the architype table. It is safe for concurrent use; specs are
// immutable once defined.
type Types struct {
	mu        sync.RWMutex
	specs     map[string]*TypeSpec
	abilities *registry.Registry[AbilityFunc]
}

// NewTypes creates a table holding the built-in Root and GenericEdge types.
func NewTypes() *Types {
	t := &Types{
		specs:     make(map[string]*TypeSpec),
		abilities: registry.New[AbilityFunc](),
	}
	t.specs[domain.RootType] = &TypeSpec{
		Name: domain.RootType,
		Kind: domain.KindNode,
		New:  func() domain.Architype { return &domain.Root{} },
	}
	t.specs[domain.GenericEdgeType] = &TypeSpec{
		Name: domain.GenericEdgeType,
		Kind: domain.KindEdge,
		New:  func() domain.Architype { return &domain.GenericEdge{} },
	}
	return t
}

// Define adds spec to the table.
func (t *Types) Define(spec TypeSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: type name cannot be empty", domain.ErrInvalidOperand)
	}
	if spec.New == nil {
		return fmt.Errorf("%w: type %s has no constructor", domain.ErrInvalidOperand, spec.Name)
	}
	sample := spec.New()
	if sample == nil {
		return fmt.Errorf("%w: constructor of %s returned nil", domain.ErrInvalidOperand, spec.Name)
	}
	if got := sample.TypeName(); got != spec.Name {
		return fmt.Errorf("%w: constructor of %s builds %s", domain.ErrInvalidOperand, spec.Name, got)
	}
	kind := domain.KindOf(sample)
	if spec.Kind == "" {
		spec.Kind = kind
	}
	if spec.Kind != kind {
		return fmt.Errorf("%w: type %s declared as %s but is a %s", domain.ErrInvalidOperand, spec.Name, spec.Kind, kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.specs[spec.Name]; exists {
		return fmt.Errorf("type %s is already defined", spec.Name)
	}
	for _, parent := range spec.Extends {
		if _, ok := t.specs[parent]; !ok {
			return fmt.Errorf("%w: %s extends %s", domain.ErrUnknownType, spec.Name, parent)
		}
	}

	spec.Extends = slices.Clone(spec.Extends)
	spec.Entry = slices.Clone(spec.Entry)
	spec.Exit = slices.Clone(spec.Exit)
	t.specs[spec.Name] = &spec
	return nil
}

// MustDefine is like Define but panics on error. It is meant for package-level setup.
func (t *Types) MustDefine(spec TypeSpec) {
	if err := t.Define(spec); err != nil {
		panic(err)
	}
}

// RegisterAbility makes fn available to abilities declared by name only.
func (t *Types) RegisterAbility(name string, fn AbilityFunc) {
	t.abilities.Register(name, fn)
}

// Lookup returns the spec defined under name.
func (t *Types) Lookup(name string) (*TypeSpec, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	spec, ok := t.specs[name]
	return spec, ok
}

// New allocates a zero architype of the named type.
func (t *Types) New(name string) (domain.Architype, error) {
	spec, ok := t.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownType, name)
	}
	return spec.New(), nil
}

// Names returns every defined type name in sorted order.
func (t *Types) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.specs))
	for name := range t.specs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsA reports whether name is ancestor or (transitively) extends it.
func (t *Types) IsA(name, ancestor string) bool {
	if name == ancestor {
		return true
	}
	spec, ok := t.Lookup(name)
	if !ok {
		return false
	}
	for _, parent := range spec.Extends {
		if t.IsA(parent, ancestor) {
			return true
		}
	}
	return false
}

// triggeredBy reports whether ab has a trigger matching other.
func (t *Types) triggeredBy(ab Ability, other string) bool {
	for _, trigger := range ab.Triggers {
		if t.IsA(other, trigger) {
			return true
		}
	}
	return false
}

// resolve returns the function of ab, looking it up by name when needed.
func (t *Types) resolve(owner string, ab Ability) (AbilityFunc, error) {
	if ab.Func != nil {
		return ab.Func, nil
	}
	if ab.Name != "" {
		if fn, ok := t.abilities.Lookup(ab.Name); ok && fn != nil {
			return fn, nil
		}
	}
	return nil, &UnregisteredAbilityError{Type: owner, Ability: ab.Name}
}
