package flowra

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/internal/runtime"
	"github.com/aretw0/flowra/pkg/adapters/memory"
	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/dsl"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/aretw0/flowra/pkg/registry"
)

// Version is set at build time with -ldflags "-X github.com/aretw0/flowra.Version=...".
var Version = "dev"

type (
	// Engine applies transitions. Obtain one from New.
	Engine = runtime.Engine
	// Instance binds an entity to a workflow type.
	Instance = runtime.Instance
	// Result is the outcome of a committed transition.
	Result = runtime.Result
	// ApplyOption sets per-call data on an applied transition.
	ApplyOption = runtime.ApplyOption
)

var (
	WithAppliedBy = runtime.WithAppliedBy
	WithComment   = runtime.WithComment
	WithMetadata  = runtime.WithMetadata
)

type config struct {
	workflows []definition.Workflow
	files     []string
	store     ports.StatusStore
	cache     ports.CacheStore
	caching   bool
	resolver  ports.Resolver
	deferrer  ports.Deferrer
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	maxDepth  int
}

// Option defines a functional option for New.
type Option func(*config)

// WithWorkflows registers workflow types.
func WithWorkflows(ws ...definition.Workflow) Option {
	return func(c *config) {
		c.workflows = append(c.workflows, ws...)
	}
}

// WithWorkflowFiles registers workflow types declared in YAML files.
func WithWorkflowFiles(paths ...string) Option {
	return func(c *config) {
		c.files = append(c.files, paths...)
	}
}

// WithStore sets the StatusStore. Defaults to an in-memory store.
func WithStore(s ports.StatusStore) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithCacheStore publishes derived definition artifacts to s.
func WithCacheStore(s ports.CacheStore) Option {
	return func(c *config) {
		c.cache = s
	}
}

// WithCaching toggles definition memoization. Enabled by default.
func WithCaching(enabled bool) Option {
	return func(c *config) {
		c.caching = enabled
	}
}

// WithResolver sets the collaborator resolving named guards and actions.
// Defaults to an empty registry.Registry.
func WithResolver(r ports.Resolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// WithDeferrer sets the collaborator receiving deferred actions.
func WithDeferrer(d ports.Deferrer) Option {
	return func(c *config) {
		c.deferrer = d
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = c.hooks.Merge(hooks)
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxSubflowDepth bounds subflow nesting.
func WithMaxSubflowDepth(n int) Option {
	return func(c *config) {
		c.maxDepth = n
	}
}

// New wires an Engine from its options.
func New(opts ...Option) (*Engine, error) {
	c := &config{caching: true, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	reg := definition.NewRegistry()
	for _, w := range c.workflows {
		if err := reg.Register(w); err != nil {
			return nil, err
		}
	}
	for _, path := range c.files {
		b, err := dsl.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(b.Workflow()); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	cacheOpts := []definition.Option{
		definition.WithCaching(c.caching),
		definition.WithLogger(c.logger),
	}
	if c.cache != nil {
		cacheOpts = append(cacheOpts, definition.WithStore(c.cache))
	}

	if c.store == nil {
		c.store = memory.NewStore()
	}
	if c.resolver == nil {
		c.resolver = registry.NewRegistry()
	}

	engineOpts := []runtime.Option{
		runtime.WithResolver(c.resolver),
		runtime.WithHooks(c.hooks),
		runtime.WithLogger(c.logger),
	}
	if c.deferrer != nil {
		engineOpts = append(engineOpts, runtime.WithDeferrer(c.deferrer))
	}
	if c.maxDepth > 0 {
		engineOpts = append(engineOpts, runtime.WithMaxSubflowDepth(c.maxDepth))
	}

	return runtime.NewEngine(definition.NewCache(reg, cacheOpts...), c.store, engineOpts...), nil
}
