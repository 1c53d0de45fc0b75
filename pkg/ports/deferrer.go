package ports

import (
	"context"

	"github.com/aretw0/flowra/pkg/domain"
)

// Deferrer accepts actions for asynchronous execution.
// Enqueue returns once the hand-off is done; execution happens later.
type Deferrer interface {
	Enqueue(ctx context.Context, action domain.Action, tc *domain.TransitionContext) error
}
