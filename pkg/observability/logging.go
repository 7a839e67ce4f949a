package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
)

// LogHooks returns hooks that log every lifecycle event to logger. Traversal
// and abilities log at Debug, denials and commits at Info, failed commits at Error.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.TraversalEvent) {
			logger.DebugContext(ctx, "node_enter", "walker", e.WalkerType, "node_id", e.NodeID, "node_type", e.NodeType)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.TraversalEvent) {
			logger.DebugContext(ctx, "node_leave", "walker", e.WalkerType, "node_id", e.NodeID)
		},
		OnDisengage: func(ctx context.Context, e *domain.TraversalEvent) {
			logger.DebugContext(ctx, "disengage", "walker", e.WalkerType, "node_id", e.NodeID)
		},
		OnAbility: func(ctx context.Context, e *domain.AbilityEvent) {
			logger.DebugContext(ctx, "ability",
				"owner", e.OwnerType,
				"ability", e.Ability,
				"phase", e.Phase,
				"duration", e.Duration,
				"failed", e.Failed,
			)
		},
		OnAccessDenied: func(ctx context.Context, e *domain.AccessEvent) {
			logger.InfoContext(ctx, "access_denied",
				"root_id", e.RootID,
				"op", e.Operation,
				"target", e.TargetID,
				"required", e.Required,
				"granted", e.Granted,
			)
		},
		OnCommit: func(ctx context.Context, e *domain.CommitEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "commit", "root_id", e.RootID, "attempts", e.Attempts, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "commit",
				"root_id", e.RootID,
				"written", e.Written,
				"removed", e.Removed,
				"skipped", e.Skipped,
				"attempts", e.Attempts,
			)
		},
	}
}
