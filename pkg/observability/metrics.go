package observability

import (
	"context"
	"strings"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by Hooks.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	GuardDenials    *prometheus.CounterVec
	ActionFailures  *prometheus.CounterVec
	SubflowsStarted *prometheus.CounterVec
	SubflowsExited  *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors. An empty namespace defaults to "flowra".
func NewMetrics(namespace string) *Metrics {
	if namespace = strings.TrimSpace(namespace); namespace == "" {
		namespace = "flowra"
	}
	return &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed transitions and jumps.",
		}, []string{"workflow", "transition", "kind"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Time from guard evaluation to commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow", "kind"}),
		GuardDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_denials_total",
			Help:      "Transitions refused by a guard.",
		}, []string{"workflow", "transition", "guard"}),
		ActionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_failures_total",
			Help:      "Actions that faulted after commit.",
		}, []string{"workflow", "transition", "action"}),
		SubflowsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subflows_started_total",
			Help:      "Inner workflows started on entering a bound state.",
		}, []string{"workflow", "inner"}),
		SubflowsExited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subflows_exited_total",
			Help:      "Inner workflows that reached an exit state.",
		}, []string{"workflow", "inner", "exit"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Transitions, m.Duration, m.GuardDenials,
		m.ActionFailures, m.SubflowsStarted, m.SubflowsExited,
	}
}

// Register adds every collector to reg, stopping at the first failure.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register that panics.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.collectors()...)
}

// Hooks returns lifecycle hooks updating the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	committed := func(_ context.Context, e *domain.TransitionEvent) {
		m.Transitions.WithLabelValues(e.Workflow, e.Transition, string(e.Kind)).Inc()
		m.Duration.WithLabelValues(e.Workflow, string(e.Kind)).Observe(e.Duration.Seconds())
	}
	return domain.LifecycleHooks{
		OnTransitionApplied: committed,
		OnJump:              committed,
		OnGuardDenied: func(_ context.Context, e *domain.GuardEvent) {
			m.GuardDenials.WithLabelValues(e.Workflow, e.Transition, e.Guard).Inc()
		},
		OnActionFailed: func(_ context.Context, e *domain.ActionEvent) {
			m.ActionFailures.WithLabelValues(e.Workflow, e.Transition, e.Action).Inc()
		},
		OnSubflowStarted: func(_ context.Context, e *domain.SubflowEvent) {
			m.SubflowsStarted.WithLabelValues(e.Workflow, e.Inner).Inc()
		},
		OnSubflowExited: func(_ context.Context, e *domain.SubflowEvent) {
			m.SubflowsExited.WithLabelValues(e.Workflow, e.Inner, string(e.State)).Inc()
		},
	}
}
