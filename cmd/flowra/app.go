package main

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowra"
	"github.com/aretw0/flowra/pkg/adapters/memory"
	"github.com/aretw0/flowra/pkg/adapters/postgres"
	redisadapter "github.com/aretw0/flowra/pkg/adapters/redis"
	"github.com/aretw0/flowra/pkg/config"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/entity"
	"github.com/aretw0/flowra/pkg/observability"
	"github.com/aretw0/flowra/pkg/persistence/middleware"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/aretw0/flowra/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// app is the wired engine plus everything that must be closed with it.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *flowra.Engine
	entities *entity.Catalog
	resolver *registry.Registry
	metrics  *prometheus.Registry
	redis    backend.UniversalClient
	queue    *redisadapter.Queue
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		entities: entity.NewCatalog(cfg.Entities),
		resolver: builtinResolver(logger),
		metrics:  prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Cache.Driver == "redis" || cfg.Store.Driver == "redis" || cfg.Deferred.Driver == "redis" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
	}
	prefix := redisadapter.WithPrefix(cfg.Redis.Prefix)

	opts := []flowra.Option{
		flowra.WithWorkflowFiles(cfg.Workflows...),
		flowra.WithResolver(a.resolver),
		flowra.WithLogger(logger),
		flowra.WithCaching(cfg.Cache.Enabled),
		flowra.WithLifecycleHooks(observability.LogHooks(logger)),
	}

	if cfg.Metrics.Enabled {
		m := observability.NewMetrics(cfg.Metrics.Namespace)
		m.MustRegister(a.metrics)
		a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, flowra.WithLifecycleHooks(m.Hooks()))
	}

	switch cfg.Cache.Driver {
	case "memory":
		opts = append(opts, flowra.WithCacheStore(memory.NewCacheStore()))
	case "redis":
		opts = append(opts, flowra.WithCacheStore(redisadapter.NewCacheStore(a.redis, prefix)))
	}

	store, err := a.openStore(ctx, prefix)
	if err != nil {
		return nil, err
	}
	opts = append(opts, flowra.WithStore(store))

	switch cfg.Deferred.Driver {
	case "memory":
		d := memory.NewDeferrer(cfg.Deferred.Workers, cfg.Deferred.Buffer, memory.WithLogger(logger))
		a.closers = append(a.closers, d.Close)
		opts = append(opts, flowra.WithDeferrer(d))
	case "redis":
		a.queue = redisadapter.NewQueue(a.redis, cfg.Deferred.Queue, prefix)
		opts = append(opts, flowra.WithDeferrer(a.queue))
	}

	a.engine, err = flowra.New(opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, prefix redisadapter.Option) (ports.StatusStore, error) {
	var store ports.StatusStore
	switch a.cfg.Store.Driver {
	case "redis":
		store = redisadapter.NewFromClient(a.redis, prefix)
	case "postgres":
		pg, err := postgres.New(ctx, a.cfg.Postgres.DSN, postgres.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if a.cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		store = pg
	default:
		store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(a.cfg.Store.Redact) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(a.cfg.Store.Redact))
	}
	key, err := a.cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(store, mws...), nil
}

// instance resolves an owner through the catalog and binds it to workflow.
func (a *app) instance(ctx context.Context, workflow, ownerType, ownerID string) (*flowra.Instance, error) {
	e, err := a.entities.Resolve(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	return a.engine.For(e, workflow), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// builtinResolver registers the actions every installation can reference.
func builtinResolver(logger *slog.Logger) *registry.Registry {
	r := registry.NewRegistry()
	r.RegisterAction("log", domain.ExecutorFunc(func(ctx context.Context, tc *domain.TransitionContext) error {
		logger.InfoContext(ctx, "transition", "owner", tc.Owner.String(), "workflow", tc.Workflow, "transition", tc.Transition.Key, "to", tc.Transition.To)
		return nil
	}))
	r.RegisterAction("noop", domain.ExecutorFunc(func(context.Context, *domain.TransitionContext) error {
		return nil
	}))
	return r
}
