package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrUnnamedAction is returned when an inline action is deferred to a queue.
// Only named actions can be resolved by a worker in another process.
var ErrUnnamedAction = errors.New("only named actions can be queued")

// Job is the queued form of a deferred action.
type Job struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Owner      domain.Owner   `json:"owner"`
	Workflow   string         `json:"workflow"`
	Transition string         `json:"transition"`
	From       domain.StateID `json:"from"`
	To         domain.StateID `json:"to"`
	Current    domain.StateID `json:"current"`
	Status     *domain.Record `json:"status,omitempty"`
	AppliedBy  string         `json:"applied_by,omitempty"`
	Comments   []string       `json:"comments,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// context rebuilds what the action saw when it was enqueued.
func (j *Job) context() *domain.TransitionContext {
	return &domain.TransitionContext{
		Owner:      j.Owner,
		Workflow:   j.Workflow,
		Transition: domain.NewTransition(j.Transition, j.From, j.To),
		Current:    j.Current,
		Status:     j.Status,
		AppliedBy:  j.AppliedBy,
		Comments:   j.Comments,
		Metadata:   j.Metadata,
	}
}

// Queue implements ports.Deferrer by pushing jobs onto a Redis list.
type Queue struct {
	client backend.UniversalClient
	key    string
}

// NewQueue creates a queue on the list "<prefix>queue:<name>".
func NewQueue(client backend.UniversalClient, name string, opts ...Option) *Queue {
	s := NewFromClient(client, opts...)
	return &Queue{client: client, key: s.prefix + "queue:" + name}
}

func (q *Queue) Enqueue(ctx context.Context, action domain.Action, tc *domain.TransitionContext) error {
	if action.Ref == "" {
		return ErrUnnamedAction
	}
	job := Job{
		ID:         uuid.NewString(),
		Action:     action.Ref,
		Owner:      tc.Owner,
		Workflow:   tc.Workflow,
		Current:    tc.Current,
		Status:     tc.Status,
		AppliedBy:  tc.AppliedBy,
		Comments:   tc.Comments,
		Metadata:   tc.Metadata,
		EnqueuedAt: time.Now().UTC(),
	}
	if tc.Transition != nil {
		job.Transition = tc.Transition.Key
		job.From = tc.Transition.From
		job.To = tc.Transition.To
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Len reports the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Worker pops jobs from a Queue and runs them with actions from a Resolver.
type Worker struct {
	queue    *Queue
	resolver ports.Resolver
	logger   *slog.Logger
	poll     time.Duration
	onError  func(*Job, error)
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithPollInterval bounds how long a blocking pop waits before the context
// is checked again.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.poll = d
	}
}

// WithJobErrorHandler is called for every job that fails.
func WithJobErrorHandler(fn func(*Job, error)) WorkerOption {
	return func(w *Worker) {
		w.onError = fn
	}
}

func NewWorker(q *Queue, r ports.Resolver, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:    q,
		resolver: r,
		logger:   logging.NewNop(),
		poll:     time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		vals, err := w.queue.client.BLPop(ctx, w.poll, w.queue.key).Result()
		switch {
		case errors.Is(err, backend.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to pop job: %w", err)
		}
		// BLPOP answers [key, value].
		w.handle(ctx, []byte(vals[1]))
	}
}

func (w *Worker) handle(ctx context.Context, data []byte) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		w.logger.Error("dropping malformed job", "err", err)
		return
	}
	if err := w.execute(ctx, &job); err != nil {
		w.logger.Warn("deferred action failed",
			"action", job.Action,
			"workflow", job.Workflow,
			"owner", job.Owner.String(),
			"job", job.ID,
			"err", err)
		if w.onError != nil {
			w.onError(&job, err)
		}
		return
	}
	w.logger.Debug("deferred action done", "action", job.Action, "job", job.ID)
}

func (w *Worker) execute(ctx context.Context, job *Job) (err error) {
	exec, err := w.resolver.ResolveAction(job.Action)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return exec.Execute(ctx, job.context())
}
