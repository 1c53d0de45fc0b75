package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// CodeException is the decision code of a guard that failed instead of deciding.
const CodeException = "exception"

// GuardEvaluator runs a transition's guards in declaration order and stops
// at the first denial.
type GuardEvaluator struct {
	resolver ports.Resolver
}

// NewGuardEvaluator creates an evaluator resolving named guards through r.
func NewGuardEvaluator(r ports.Resolver) *GuardEvaluator {
	return &GuardEvaluator{resolver: r}
}

// Evaluate returns the first denying decision and the label of the guard
// that produced it, or an allowing decision.
func (g *GuardEvaluator) Evaluate(ctx context.Context, t *domain.Transition, tc *domain.TransitionContext) (domain.Decision, string) {
	for _, guard := range t.Guards {
		if d := g.check(ctx, guard, tc); !d.Allowed {
			return d, guard.Label()
		}
	}
	return domain.Allow(), ""
}

func (g *GuardEvaluator) check(ctx context.Context, guard domain.Guard, tc *domain.TransitionContext) (d domain.Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = domain.Deny(fmt.Sprintf("guard panicked: %v", r), CodeException)
		}
	}()

	checker := guard.Checker
	if checker == nil {
		if guard.Ref == "" || g.resolver == nil {
			return domain.Deny(fmt.Sprintf("guard (%s) cannot be resolved", guard.Label()), CodeException)
		}
		c, err := g.resolver.ResolveGuard(guard.Ref)
		if err != nil {
			return domain.Deny(err.Error(), CodeException)
		}
		checker = c
	}

	decision, err := checker.Allows(ctx, tc)
	if err != nil {
		return domain.Deny(err.Error(), CodeException)
	}
	return decision
}
