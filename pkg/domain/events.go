package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventAbility      EventType = "ability"
	EventDisengage    EventType = "disengage"
	EventAccessDenied EventType = "access_denied"
	EventCommit       EventType = "commit"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RootID    ID        `json:"root_id"`
}

// TraversalEvent reports a walker arriving at, leaving, or stopping on a node.
type TraversalEvent struct {
	EventBase
	WalkerID   ID     `json:"walker_id"`
	WalkerType string `json:"walker_type"`
	NodeID     ID     `json:"node_id"`
	NodeType   string `json:"node_type"`
}

// AbilityEvent reports one ability invocation.
type AbilityEvent struct {
	EventBase
	OwnerType string        `json:"owner_type"`
	Ability   string        `json:"ability"`
	Phase     string        `json:"phase"`
	HereID    ID            `json:"here_id"`
	Duration  time.Duration `json:"duration"`
	Failed    bool          `json:"failed,omitempty"`
}

// AccessEvent reports an operation skipped for lack of permission.
type AccessEvent struct {
	EventBase
	Operation  string      `json:"operation"`
	TargetID   ID          `json:"target_id"`
	TargetType string      `json:"target_type"`
	Required   AccessLevel `json:"required"`
	Granted    AccessLevel `json:"granted"`
}

// CommitEvent reports the outcome of a memory flush.
type CommitEvent struct {
	EventBase
	Written  int           `json:"written"`
	Removed  int           `json:"removed"`
	Skipped  int           `json:"skipped"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *TraversalEvent)
	OnNodeLeave    func(context.Context, *TraversalEvent)
	OnDisengage    func(context.Context, *TraversalEvent)
	OnAbility      func(context.Context, *AbilityEvent)
	OnAccessDenied func(context.Context, *AccessEvent)
	OnCommit       func(context.Context, *CommitEvent)
}

// Chain returns hooks that call h first and then next for every event.
func (h LifecycleHooks) Chain(next LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:    chain(h.OnNodeEnter, next.OnNodeEnter),
		OnNodeLeave:    chain(h.OnNodeLeave, next.OnNodeLeave),
		OnDisengage:    chain(h.OnDisengage, next.OnDisengage),
		OnAbility:      chain(h.OnAbility, next.OnAbility),
		OnAccessDenied: chain(h.OnAccessDenied, next.OnAccessDenied),
		OnCommit:       chain(h.OnCommit, next.OnCommit),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
