package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowra/pkg/domain"
)

// LogHooks returns lifecycle hooks writing one log line per event.
// Denials log at info, action faults at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransitionApplied: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition applied",
				"owner", e.Owner.String(),
				"workflow", e.Workflow,
				"transition", e.Transition,
				"from", e.From,
				"to", e.To,
				"duration", e.Duration,
			)
		},
		OnJump: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "jumped",
				"owner", e.Owner.String(),
				"workflow", e.Workflow,
				"key", e.Transition,
				"from", e.From,
				"to", e.To,
			)
		},
		OnGuardDenied: func(ctx context.Context, e *domain.GuardEvent) {
			logger.InfoContext(ctx, "guard denied",
				"owner", e.Owner.String(),
				"workflow", e.Workflow,
				"transition", e.Transition,
				"guard", e.Guard,
				"message", e.Decision.Message,
			)
		},
		OnActionFailed: func(ctx context.Context, e *domain.ActionEvent) {
			logger.WarnContext(ctx, "action failed",
				"owner", e.Owner.String(),
				"workflow", e.Workflow,
				"transition", e.Transition,
				"action", e.Action,
				"error", e.Err,
			)
		},
		OnSubflowStarted: func(ctx context.Context, e *domain.SubflowEvent) {
			logger.InfoContext(ctx, "subflow started",
				"owner", e.Owner.String(),
				"workflow", e.Workflow,
				"inner", e.Inner,
				"start", e.Transition,
			)
		},
		OnSubflowExited: func(ctx context.Context, e *domain.SubflowEvent) {
			logger.InfoContext(ctx, "subflow exited",
				"owner", e.Owner.String(),
				"workflow", e.Workflow,
				"inner", e.Inner,
				"exit", e.State,
				"resume", e.Transition,
			)
		},
	}
}
