package definition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// Cached artifact names published to a ports.CacheStore.
const (
	ArtifactTransitions       = "transitions"
	ArtifactStates            = "states"
	ArtifactStateGroups       = "state_groups"
	ArtifactStateGroupParents = "state_group_parents"
	ArtifactSubflows          = "subflows"
)

// Artifacts lists every artifact name a definition publishes.
var Artifacts = []string{
	ArtifactTransitions,
	ArtifactStates,
	ArtifactStateGroups,
	ArtifactStateGroupParents,
	ArtifactSubflows,
}

// Cache memoizes one Definition per workflow type.
//
// The schema function of a type runs once until the type is invalidated.
// Entries are published fully built; readers never see a partial Definition.
type Cache struct {
	registry *Registry
	store    ports.CacheStore
	enabled  bool
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	once sync.Once
	def  *Definition
	err  error
}

type Option func(*Cache)

// WithStore publishes derived artifacts to an external cache store.
func WithStore(store ports.CacheStore) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithCaching toggles memoization. Disabled caches rebuild on every call.
func WithCaching(enabled bool) Option {
	return func(c *Cache) {
		c.enabled = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a cache over the workflows in registry.
func NewCache(registry *Registry, opts ...Option) *Cache {
	c := &Cache{
		registry: registry,
		enabled:  true,
		logger:   logging.NewNop(),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the workflow registry backing the cache.
func (c *Cache) Registry() *Registry {
	return c.registry
}

// GetDefinition returns the Definition of a workflow type, building it on first use.
func (c *Cache) GetDefinition(ctx context.Context, workflow string) (*Definition, error) {
	if !c.enabled {
		return c.build(ctx, workflow)
	}

	c.mu.RLock()
	e, ok := c.entries[workflow]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		if e, ok = c.entries[workflow]; !ok {
			e = &entry{}
			c.entries[workflow] = e
		}
		c.mu.Unlock()
	}

	e.once.Do(func() {
		e.def, e.err = c.build(ctx, workflow)
	})
	if e.err != nil {
		// Failed builds are not memoized.
		c.mu.Lock()
		if c.entries[workflow] == e {
			delete(c.entries, workflow)
		}
		c.mu.Unlock()
		return nil, e.err
	}
	return e.def, nil
}

// Invalidate drops the memoized Definition and published artifacts of a type.
func (c *Cache) Invalidate(ctx context.Context, workflow string) error {
	c.mu.Lock()
	delete(c.entries, workflow)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Forget(ctx, workflow, Artifacts...); err != nil {
			return fmt.Errorf("forget cached artifacts of %s: %w", workflow, err)
		}
	}
	c.logger.Debug("workflow definition invalidated", "workflow", workflow)
	return nil
}

// InvalidateAll drops every memoized Definition and returns the affected types.
func (c *Cache) InvalidateAll(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	types := make([]string, 0, len(c.entries))
	for t := range c.entries {
		types = append(types, t)
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	if c.store != nil {
		forgotten, err := c.store.ForgetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("forget cached artifacts: %w", err)
		}
		types = append(types, forgotten...)
	}
	slices.Sort(types)
	types = slices.Compact(types)
	c.logger.Debug("workflow definitions invalidated", "count", len(types))
	return types, nil
}

// Warm builds the given types, or every registered type when none is given.
func (c *Cache) Warm(ctx context.Context, workflows ...string) ([]string, error) {
	if len(workflows) == 0 {
		workflows = c.registry.Types()
	}
	for _, w := range workflows {
		if _, err := c.GetDefinition(ctx, w); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

func (c *Cache) build(ctx context.Context, workflow string) (*Definition, error) {
	w, err := c.registry.mustLookup(workflow)
	if err != nil {
		return nil, err
	}
	schema, err := w.Schema()
	if err != nil {
		return nil, &domain.DefinitionError{Workflow: workflow, Reason: err.Error()}
	}
	def, err := Build(workflow, schema)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, def)
	c.logger.Debug("workflow definition built", "workflow", workflow, "transitions", len(def.order))
	return def, nil
}

// publish is best effort: the in-process Definition stays authoritative.
func (c *Cache) publish(ctx context.Context, def *Definition) {
	if c.store == nil {
		return
	}
	for name, value := range def.Artifacts() {
		_, err := c.store.RememberIfMissing(ctx, def.workflow, name, func() ([]byte, error) {
			return json.Marshal(value)
		})
		if err != nil {
			c.logger.Warn("failed to publish definition artifact",
				"workflow", def.workflow, "artifact", name, "error", err)
		}
	}
}

// TransitionSummary is the serializable form of a transition.
type TransitionSummary struct {
	Key     string         `json:"key"`
	From    domain.StateID `json:"from"`
	To      domain.StateID `json:"to"`
	Kind    domain.Kind    `json:"kind"`
	Guards  []string       `json:"guards,omitempty"`
	Actions []string       `json:"actions,omitempty"`
}

// Summaries describes the transition table without callables.
func (d *Definition) Summaries() []TransitionSummary {
	out := make([]TransitionSummary, 0, len(d.order))
	for _, t := range d.Transitions() {
		s := TransitionSummary{Key: t.Key, From: t.From, To: t.To, Kind: t.Kind}
		for _, g := range t.Guards {
			s.Guards = append(s.Guards, g.Label())
		}
		for _, a := range t.Actions {
			label := a.Label()
			if a.IsDeferred() {
				label = "defer:" + label
			}
			s.Actions = append(s.Actions, label)
		}
		out = append(out, s)
	}
	return out
}

// Artifacts returns the serializable views published to a cache store.
func (d *Definition) Artifacts() map[string]any {
	return map[string]any{
		ArtifactTransitions:       d.Summaries(),
		ArtifactStates:            d.States(),
		ArtifactStateGroups:       d.StateGroups(),
		ArtifactStateGroupParents: d.parents,
		ArtifactSubflows:          d.Subflows(),
	}
}
