// Package bulk applies one transition across many entities.
package bulk

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/internal/runtime"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// Options tune a bulk run.
type Options struct {
	AppliedBy       string
	Comments        []string
	ContinueOnError bool
	// ChunkSize bounds how many targets are buffered at once. Zero means
	// one chunk. It never changes the outcome.
	ChunkSize int
}

// Service is the bulk entry point over an engine.
type Service struct {
	engine *runtime.Engine
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(engine *runtime.Engine, opts ...Option) *Service {
	s := &Service{engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply runs the transition key of workflow over targets. Each target is a
// ports.Entity or a *runtime.Instance bound to workflow.
//
// Without ContinueOnError the first fault is returned together with the
// partial result collected so far.
func (s *Service) Apply(ctx context.Context, workflow string, targets []any, key string, opts Options) (*Result, error) {
	return s.ApplySeq(ctx, workflow, slices.Values(targets), key, opts)
}

// ApplySeq is Apply over a lazily produced sequence of targets.
func (s *Service) ApplySeq(ctx context.Context, workflow string, targets iter.Seq[any], key string, opts Options) (*Result, error) {
	def, err := s.engine.Definition(ctx, workflow)
	if err != nil {
		return nil, err
	}
	transition, ok := def.Transition(key)
	if !ok {
		return nil, &domain.TransitionNotRegisteredError{Workflow: workflow, Transition: key}
	}

	type pending struct {
		index  int
		target any
	}

	result := &Result{}
	chunk := make([]pending, 0, max(opts.ChunkSize, 1))
	flush := func() error {
		s.logger.Debug("applying bulk chunk", "workflow", workflow, "transition", key, "size", len(chunk))
		for _, p := range chunk {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.applyOne(ctx, workflow, p.index, p.target, transition, opts, result); err != nil {
				return err
			}
		}
		chunk = chunk[:0]
		return nil
	}

	index := 0
	for target := range targets {
		chunk = append(chunk, pending{index: index, target: target})
		index++
		if opts.ChunkSize > 0 && len(chunk) >= opts.ChunkSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	s.logger.Info("bulk transition finished",
		"workflow", workflow, "transition", key,
		"succeeded", result.SuccessfulCount(), "failed", result.FailedCount())
	return result, nil
}

func (s *Service) applyOne(ctx context.Context, workflow string, index int, target any, transition *domain.Transition, opts Options, result *Result) error {
	res, err := s.apply(ctx, workflow, target, transition, opts)
	if err != nil {
		result.Failures = append(result.Failures, Failure{Index: index, Target: target, Err: err})
		if !opts.ContinueOnError {
			return err
		}
		s.logger.Debug("bulk target failed", "workflow", workflow, "error", err)
		return nil
	}
	result.Successes = append(result.Successes, Success{Index: index, Target: target, Status: res.Status, ActionErr: res.Err()})
	return nil
}

func (s *Service) apply(ctx context.Context, workflow string, target any, transition *domain.Transition, opts Options) (*runtime.Result, error) {
	var inst *runtime.Instance
	switch t := target.(type) {
	case *runtime.Instance:
		if t.Workflow() != workflow {
			return nil, &domain.IncompatibleTargetError{Expected: workflow, Actual: t.Workflow()}
		}
		inst = t
	case ports.Entity:
		inst = s.engine.For(t, workflow)
	default:
		return nil, &domain.IncompatibleTargetError{Expected: workflow, Actual: fmt.Sprintf("%T", target)}
	}

	clone := transition.Clone()
	clone.AppliedBy = opts.AppliedBy
	clone.Comments = slices.Clone(opts.Comments)
	return inst.ApplyTransition(ctx, clone)
}
