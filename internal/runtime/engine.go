package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/google/uuid"
)

// Engine applies transitions for entities. It holds no per-entity state:
// the StatusStore is the single source of truth and its conditional
// upsert is the only serialization point between concurrent callers.
type Engine struct {
	cache    *definition.Cache
	store    ports.StatusStore
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	maxDepth int

	resolver ports.Resolver
	deferrer ports.Deferrer

	guards   *GuardEvaluator
	actions  *ActionExecutor
	subflows *SubflowCoordinator
}

type Option func(*Engine)

// WithResolver sets the collaborator resolving named guards and actions.
func WithResolver(r ports.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithDeferrer sets the collaborator receiving deferred actions.
func WithDeferrer(d ports.Deferrer) Option {
	return func(e *Engine) {
		e.deferrer = d
	}
}

// WithHooks registers lifecycle callbacks. Repeated calls are merged.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(h)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the timestamp source of new records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxSubflowDepth bounds how many nested transitions a single call may trigger.
func WithMaxSubflowDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// NewEngine creates an engine over a definition cache and a status store.
func NewEngine(cache *definition.Cache, store ports.StatusStore, opts ...Option) *Engine {
	e := &Engine{
		cache:    cache,
		store:    store,
		logger:   logging.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		maxDepth: 16,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.guards = NewGuardEvaluator(e.resolver)
	e.actions = NewActionExecutor(e.resolver, e.deferrer)
	e.subflows = &SubflowCoordinator{engine: e}
	return e
}

// For binds the engine to one entity and workflow type.
func (e *Engine) For(entity ports.Entity, workflow string) *Instance {
	return &Instance{engine: e, entity: entity, workflow: workflow}
}

// Definition returns the cached definition of a workflow type.
func (e *Engine) Definition(ctx context.Context, workflow string) (*definition.Definition, error) {
	return e.cache.GetDefinition(ctx, workflow)
}

// Cache exposes the definition cache the engine reads from.
func (e *Engine) Cache() *definition.Cache {
	return e.cache
}

// OwnersIn lists the owners whose current state in workflow is state.
func (e *Engine) OwnersIn(ctx context.Context, workflow string, state domain.StateID) ([]domain.Owner, error) {
	def, err := e.cache.GetDefinition(ctx, workflow)
	if err != nil {
		return nil, err
	}
	if !def.HasState(state) {
		return nil, &domain.DefinitionError{Workflow: workflow, Reason: "unknown state " + string(state)}
	}
	owners, err := e.store.FindByState(ctx, workflow, state)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find by state", Err: err}
	}
	return owners, nil
}

type depthKey struct{}

func depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

func deeper(ctx context.Context) context.Context {
	return context.WithValue(ctx, depthKey{}, depth(ctx)+1)
}
