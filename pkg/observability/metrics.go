package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// Metrics counts expansions, builds and loads by outcome.
type Metrics struct {
	Expansions    *prometheus.CounterVec
	Builds        *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
	Loads         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Expansions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpyharness_expansions_total",
				Help: "Templates expanded, by outcome",
			},
			[]string{"outcome"},
		),
		Builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpyharness_builds_total",
				Help: "Toolchain invocations, by abi and outcome",
			},
			[]string{"abi", "outcome"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hpyharness_build_duration_seconds",
				Help:    "Duration of toolchain invocations",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"abi"},
		),
		Loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hpyharness_loads_total",
				Help: "Module loads, by outcome",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Expansions, m.Builds, m.BuildDuration, m.Loads)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExpand: func(_ context.Context, e *domain.ExpandEvent) {
			m.Expansions.WithLabelValues(outcome(e.Err)).Inc()
		},
		OnBuild: func(_ context.Context, e *domain.BuildEvent) {
			abi := string(e.ABI)
			m.Builds.WithLabelValues(abi, outcome(e.Err)).Inc()
			if e.Duration > 0 {
				m.BuildDuration.WithLabelValues(abi).Observe(e.Duration.Seconds())
			}
		},
		OnLoad: func(_ context.Context, e *domain.LoadEvent) {
			m.Loads.WithLabelValues(outcome(e.Err)).Inc()
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
