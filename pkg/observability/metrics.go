package observability

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arbor"

// Metrics holds the prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	NodeVisits      *prometheus.CounterVec
	Disengages      *prometheus.CounterVec
	AbilityDuration *prometheus.HistogramVec
	AbilityFailures *prometheus.CounterVec
	AccessDenied    *prometheus.CounterVec
	CommitDuration  prometheus.Histogram
	CommitAttempts  prometheus.Histogram
	CommitAnchors   *prometheus.CounterVec
	CommitFailures  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Nodes entered by walkers.",
		}, []string{"walker_type", "node_type"}),
		Disengages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disengages_total",
			Help:      "Walkers that disengaged before their queue drained.",
		}, []string{"walker_type"}),
		AbilityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ability_duration_seconds",
			Help:      "Duration of ability invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"owner_type", "ability", "phase"}),
		AbilityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ability_failures_total",
			Help:      "Ability invocations that returned an error.",
		}, []string{"owner_type", "ability"}),
		AccessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Operations silently skipped for lack of permission.",
		}, []string{"operation", "required"}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Duration of memory commits, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		CommitAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_attempts",
			Help:      "Store attempts made per commit.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		CommitAnchors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_anchors_total",
			Help:      "Anchors handled by commits, by outcome.",
		}, []string{"outcome"}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_failures_total",
			Help:      "Commits that gave up.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.NodeVisits, m.Disengages, m.AbilityDuration, m.AbilityFailures,
		m.AccessDenied, m.CommitDuration, m.CommitAttempts, m.CommitAnchors, m.CommitFailures,
	}
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.TraversalEvent) {
			m.NodeVisits.WithLabelValues(e.WalkerType, e.NodeType).Inc()
		},
		OnDisengage: func(_ context.Context, e *domain.TraversalEvent) {
			m.Disengages.WithLabelValues(e.WalkerType).Inc()
		},
		OnAbility: func(_ context.Context, e *domain.AbilityEvent) {
			m.AbilityDuration.WithLabelValues(e.OwnerType, e.Ability, e.Phase).Observe(e.Duration.Seconds())
			if e.Failed {
				m.AbilityFailures.WithLabelValues(e.OwnerType, e.Ability).Inc()
			}
		},
		OnAccessDenied: func(_ context.Context, e *domain.AccessEvent) {
			m.AccessDenied.WithLabelValues(e.Operation, e.Required.String()).Inc()
		},
		OnCommit: func(_ context.Context, e *domain.CommitEvent) {
			m.CommitDuration.Observe(e.Duration.Seconds())
			if e.Attempts > 0 {
				m.CommitAttempts.Observe(float64(e.Attempts))
			}
			if e.Err != nil {
				m.CommitFailures.Inc()
				return
			}
			m.CommitAnchors.WithLabelValues("written").Add(float64(e.Written))
			m.CommitAnchors.WithLabelValues("removed").Add(float64(e.Removed))
			m.CommitAnchors.WithLabelValues("skipped").Add(float64(e.Skipped))
		},
	}
}

// Instrument returns hooks running h first and then the metric updates.
func (m *Metrics) Instrument(h domain.LifecycleHooks) domain.LifecycleHooks {
	return h.Chain(m.Hooks())
}
