package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Phase names used in events and errors.
const (
	PhaseStart     = "start"
	PhaseNodeEntry = "node_entry"
	PhaseEntry     = "walker_entry"
	PhaseExit      = "walker_exit"
	PhaseNodeExit  = "node_exit"
	PhaseEnd       = "end"
)

// SpawnCall runs a walker from a start node until its queue drains or it
// disengages. The operands may be given in either order; an edge start means
// its target. For every dequeued node the phases run in a fixed order:
// node entry abilities triggered by the walker (or untriggered), walker entry
// abilities triggered by the node, walker exit abilities triggered by the
// node, then node exit abilities. Untriggered walker entry abilities run once
// before the loop and untriggered walker exit abilities once after it.
// Ignores are cleared only when the traversal completes without disengaging.
func (x *Context) SpawnCall(ctx context.Context, a, b domain.Architype) (domain.Architype, error) {
	walker, start, err := x.spawnOperands(ctx, a, b)
	if err != nil {
		return nil, err
	}
	wa, _ := domain.WalkerOf(walker)

	wspec, ok := x.engine.types.Lookup(walker.TypeName())
	if !ok {
		return nil, fmt.Errorf("%w: walker %s", domain.ErrUnknownType, walker.TypeName())
	}

	wa.Reset(start)
	x.logger.Debug("walker spawned", "walker", wa.String(), "start", start.String())

	current := start
	for _, ab := range wspec.Entry {
		if !ab.Untriggered() {
			continue
		}
		if err := x.invoke(ctx, wspec, PhaseStart, ab, walker, current.Architype(), current); err != nil {
			return nil, err
		}
		if wa.Disengaged() {
			return x.halt(ctx, wa, current), nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, ok := wa.Dequeue()
		if !ok {
			break
		}
		current = next
		x.emitTraversal(ctx, x.hooks.OnNodeEnter, domain.EventNodeEnter, wa, current)

		for _, s := range x.steps(wspec, walker, current) {
			if err := x.invoke(ctx, s.spec, s.phase, s.ab, s.self, s.other, current); err != nil {
				return nil, err
			}
			if wa.Disengaged() {
				return x.halt(ctx, wa, current), nil
			}
		}

		x.emitTraversal(ctx, x.hooks.OnNodeLeave, domain.EventNodeLeave, wa, current)
	}

	for _, ab := range wspec.Exit {
		if !ab.Untriggered() {
			continue
		}
		if err := x.invoke(ctx, wspec, PhaseEnd, ab, walker, current.Architype(), current); err != nil {
			return nil, err
		}
		if wa.Disengaged() {
			return x.halt(ctx, wa, current), nil
		}
	}

	wa.ClearIgnores()
	x.logger.Debug("walker completed", "walker", wa.String(), "visited", len(wa.Path()))
	return walker, nil
}

// step is one ability call scheduled on the current node.
type step struct {
	spec  *TypeSpec
	phase string
	ab    Ability
	self  domain.Architype
	other domain.Architype
}

// steps lists the abilities to run on here in dispatch order.
func (x *Context) steps(wspec *TypeSpec, walker domain.Architype, here *domain.NodeAnchor) []step {
	types := x.engine.types
	node := here.Architype()
	nspec, _ := types.Lookup(here.Type)

	var out []step
	nodeSide := func(abs []Ability, phase string) {
		for _, ab := range abs {
			if ab.Untriggered() || types.triggeredBy(ab, wspec.Name) {
				out = append(out, step{spec: nspec, phase: phase, ab: ab, self: node, other: walker})
			}
		}
	}
	walkerSide := func(abs []Ability, phase string) {
		for _, ab := range abs {
			// Untriggered walker abilities bracket the traversal instead.
			if !ab.Untriggered() && types.triggeredBy(ab, here.Type) {
				out = append(out, step{spec: wspec, phase: phase, ab: ab, self: walker, other: node})
			}
		}
	}

	if nspec != nil {
		nodeSide(nspec.Entry, PhaseNodeEntry)
	}
	walkerSide(wspec.Entry, PhaseEntry)
	walkerSide(wspec.Exit, PhaseExit)
	if nspec != nil {
		nodeSide(nspec.Exit, PhaseNodeExit)
	}
	return out
}

func (x *Context) spawnOperands(ctx context.Context, a, b domain.Architype) (domain.Architype, *domain.NodeAnchor, error) {
	walker, other := a, b
	if _, ok := domain.WalkerOf(walker); !ok {
		walker, other = b, a
	}
	if _, ok := domain.WalkerOf(walker); !ok {
		return nil, nil, fmt.Errorf("%w: spawn needs a walker, got %s and %s", domain.ErrInvalidOperand, typeName(a), typeName(b))
	}
	start, err := x.target(ctx, other)
	if err != nil {
		return nil, nil, err
	}
	return walker, start, nil
}

// target turns a node or edge operand into the node a walker would go to.
func (x *Context) target(ctx context.Context, arch domain.Architype) (*domain.NodeAnchor, error) {
	if n, ok := domain.NodeOf(arch); ok {
		return n, nil
	}
	if e, ok := domain.EdgeOf(arch); ok {
		return e.Target(ctx, x.mem)
	}
	return nil, fmt.Errorf("%w: expected a node or edge, got %s", domain.ErrInvalidOperand, typeName(arch))
}

// Visit enqueues every target not in the walker's ignores; edges contribute
// their target node. It reports whether the queue grew.
func (x *Context) Visit(ctx context.Context, walker domain.Architype, targets ...domain.Architype) (bool, error) {
	wa, ok := domain.WalkerOf(walker)
	if !ok {
		return false, fmt.Errorf("%w: visit needs a walker, got %s", domain.ErrInvalidOperand, typeName(walker))
	}
	before := wa.Pending()
	for _, t := range targets {
		n, err := x.target(ctx, t)
		if err != nil {
			return wa.Pending() > before, err
		}
		if !wa.Ignored(n) {
			wa.Enqueue(n)
		}
	}
	return wa.Pending() > before, nil
}

// Ignore adds every target to the walker's ignores, resolving edges like
// Visit. It reports whether the set grew.
func (x *Context) Ignore(ctx context.Context, walker domain.Architype, targets ...domain.Architype) (bool, error) {
	wa, ok := domain.WalkerOf(walker)
	if !ok {
		return false, fmt.Errorf("%w: ignore needs a walker, got %s", domain.ErrInvalidOperand, typeName(walker))
	}
	grew := false
	for _, t := range targets {
		n, err := x.target(ctx, t)
		if err != nil {
			return grew, err
		}
		if wa.AddIgnore(n) {
			grew = true
		}
	}
	return grew, nil
}

// Disengage stops the walker at the next checkpoint, after the running ability returns.
func (x *Context) Disengage(walker domain.Architype) (bool, error) {
	wa, ok := domain.WalkerOf(walker)
	if !ok {
		return false, fmt.Errorf("%w: disengage needs a walker, got %s", domain.ErrInvalidOperand, typeName(walker))
	}
	wa.Disengage()
	return true, nil
}

func (x *Context) invoke(ctx context.Context, spec *TypeSpec, phase string, ab Ability, self, other domain.Architype, here *domain.NodeAnchor) error {
	fn, err := x.engine.types.resolve(spec.Name, ab)
	if err != nil {
		return err
	}

	start := time.Now()
	err = fn(ctx, x, self, other)
	if x.hooks.OnAbility != nil {
		x.hooks.OnAbility(ctx, &domain.AbilityEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventAbility, RootID: x.root.ID},
			OwnerType: spec.Name,
			Ability:   ab.Name,
			Phase:     phase,
			HereID:    here.ID,
			Duration:  time.Since(start),
			Failed:    err != nil,
		})
	}
	if err != nil {
		return &AbilityError{Type: spec.Name, Ability: ab.Name, Phase: phase, NodeID: here.ID, Err: err}
	}
	return nil
}

func (x *Context) halt(ctx context.Context, wa *domain.WalkerAnchor, here *domain.NodeAnchor) domain.Architype {
	x.emitTraversal(ctx, x.hooks.OnDisengage, domain.EventDisengage, wa, here)
	x.logger.Debug("walker disengaged", "walker", wa.String(), "at", here.String())
	return wa.Architype()
}

func (x *Context) emitTraversal(ctx context.Context, hook func(context.Context, *domain.TraversalEvent), typ domain.EventType, wa *domain.WalkerAnchor, n *domain.NodeAnchor) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.TraversalEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: typ, RootID: x.root.ID},
		WalkerID:   wa.ID,
		WalkerType: wa.Type,
		NodeID:     n.ID,
		NodeType:   n.Type,
	})
}
