package arbor

import (
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
)

// Execution and type table.
type (
	Context     = runtime.Context
	Types       = runtime.Types
	TypeSpec    = runtime.TypeSpec
	Ability     = runtime.Ability
	AbilityFunc = runtime.AbilityFunc
	Direction   = runtime.Direction
	EdgeFilter  = runtime.EdgeFilter
	EdgeBuilder = runtime.EdgeBuilder
)

// Graph values.
type (
	ID          = domain.ID
	Architype   = domain.Architype
	Node        = domain.Node
	Edge        = domain.Edge
	Walker      = domain.Walker
	Object      = domain.Object
	Root        = domain.Root
	GenericEdge = domain.GenericEdge
	AccessLevel = domain.AccessLevel
)

// Edge directions.
const (
	Out = runtime.Out
	In  = runtime.In
	Any = runtime.Any
)

// Access levels.
const (
	NoAccess = domain.NoAccess
	Read     = domain.Read
	Connect  = domain.Connect
	Write    = domain.Write
)

// SystemRootID is the id of the root every engine creates on first use.
const SystemRootID = domain.SystemRootID

// BuildEdge returns an EdgeBuilder allocating edges with newEdge, or
// GenericEdge when newEdge is nil.
func BuildEdge(newEdge func() Architype, undirected bool) EdgeBuilder {
	return runtime.BuildEdge(newEdge, undirected)
}
