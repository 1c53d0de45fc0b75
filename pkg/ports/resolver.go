package ports

import "github.com/aretw0/flowra/pkg/domain"

// Resolver produces guard and action implementations for named references.
type Resolver interface {
	ResolveGuard(name string) (domain.Checker, error)
	ResolveAction(name string) (domain.Executor, error)
}
