package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/pkg/domain"
)

// ErrDeferrerClosed is returned by Enqueue after Close.
var ErrDeferrerClosed = errors.New("deferrer is closed")

// Deferrer implements ports.Deferrer with a fixed pool of goroutines.
type Deferrer struct {
	jobs    chan deferredJob
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
	onError func(domain.Action, *domain.TransitionContext, error)
}

type deferredJob struct {
	ctx    context.Context
	action domain.Action
	tc     *domain.TransitionContext
}

type DeferrerOption func(*Deferrer)

func WithLogger(logger *slog.Logger) DeferrerOption {
	return func(d *Deferrer) {
		d.logger = logger
	}
}

// WithErrorHandler is called for every deferred action that fails.
func WithErrorHandler(fn func(domain.Action, *domain.TransitionContext, error)) DeferrerOption {
	return func(d *Deferrer) {
		d.onError = fn
	}
}

// NewDeferrer starts workers goroutines draining a queue of size buffer.
func NewDeferrer(workers, buffer int, opts ...DeferrerOption) *Deferrer {
	if workers < 1 {
		workers = 1
	}
	d := &Deferrer{
		jobs:   make(chan deferredJob, buffer),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for range workers {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue hands the action to the pool. The action outlives the caller's
// context cancellation but keeps its values.
func (d *Deferrer) Enqueue(ctx context.Context, action domain.Action, tc *domain.TransitionContext) error {
	if action.Executor == nil {
		return errors.New("deferred action has no executor")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDeferrerClosed
	}

	select {
	case d.jobs <- deferredJob{ctx: context.WithoutCancel(ctx), action: action, tc: tc}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued actions to finish.
func (d *Deferrer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Deferrer) work() {
	defer d.wg.Done()
	for job := range d.jobs {
		if err := job.run(); err != nil {
			d.logger.Warn("deferred action failed",
				"action", job.action.Label(),
				"workflow", job.tc.Workflow,
				"owner", job.tc.Owner.String(),
				"error", err)
			if d.onError != nil {
				d.onError(job.action, job.tc, err)
			}
		}
	}
}

func (j deferredJob) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return j.action.Executor.Execute(j.ctx, j.tc)
}
