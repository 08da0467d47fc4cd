// Package observability exposes Prometheus metrics for the agent runtime.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the runtime's instrument set. Register it against a
// prometheus.Registerer once at composition.
type Metrics struct {
	ToolCalls          *prometheus.CounterVec
	HookRuns           *prometheus.CounterVec
	CriterionDuration  *prometheus.HistogramVec
	LearningExtraction *prometheus.CounterVec
	TurnDuration       prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "success"}),
		HookRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Name:      "hook_runs_total",
			Help:      "Hook invocations by hook name, position and outcome.",
		}, []string{"hook", "position", "outcome"}),
		CriterionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agent",
			Name:      "criterion_duration_seconds",
			Help:      "Evaluation criterion wall-clock duration by status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"suite", "status"}),
		LearningExtraction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent",
			Name:      "learning_extractions_total",
			Help:      "Learning extraction attempts by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agent",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end agent turn duration.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// Register attaches every instrument to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.ToolCalls,
		m.HookRuns,
		m.CriterionDuration,
		m.LearningExtraction,
		m.TurnDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool string, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	m.ToolCalls.WithLabelValues(tool, label).Inc()
}

// ObserveCriterion records one criterion execution.
func (m *Metrics) ObserveCriterion(suite, status string, d time.Duration) {
	m.CriterionDuration.WithLabelValues(suite, status).Observe(d.Seconds())
}

// ObserveHookRun records one hook invocation.
func (m *Metrics) ObserveHookRun(hook, position string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.HookRuns.WithLabelValues(hook, position, outcome).Inc()
}

// ObserveLearningExtraction records one learning loop outcome.
func (m *Metrics) ObserveLearningExtraction(outcome string) {
	m.LearningExtraction.WithLabelValues(outcome).Inc()
}

// ObserveTurn records one end-to-end agent turn.
func (m *Metrics) ObserveTurn(d time.Duration) {
	m.TurnDuration.Observe(d.Seconds())
}
