package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigil-agent/vigil/internal/agent"
	"github.com/vigil-agent/vigil/internal/tool"
)

// Metrics instruments runs with Prometheus collectors on a private
// registry, so multiple gateways (tests included) never collide.
type Metrics struct {
	registry        *prometheus.Registry
	runsTotal       *prometheus.CounterVec
	runSteps        prometheus.Histogram
	runDuration     prometheus.Histogram
	toolDispatches  *prometheus.CounterVec
	guardrailBlocks *prometheus.CounterVec
}

// NewMetrics builds the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "runs_total",
			Help:      "Completed runs by terminal outcome.",
		}, []string{"outcome"}),
		runSteps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vigil",
			Name:      "run_steps",
			Help:      "Trace steps per run.",
			Buckets:   []float64{1, 3, 5, 7, 10, 15, 21},
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vigil",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration per run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		toolDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "tool_dispatches_total",
			Help:      "Tool dispatches by tool name and result status.",
		}, []string{"tool", "status"}),
		guardrailBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vigil",
			Name:      "guardrail_blocks_total",
			Help:      "Dispatches refused before execution, by refusal kind.",
		}, []string{"kind"}),
	}
}

// ObserveRun records one sealed run, including per-tool dispatch counts
// derived from its tool result steps.
func (m *Metrics) ObserveRun(run agent.Run, duration time.Duration) {
	m.runsTotal.WithLabelValues(string(run.Outcome)).Inc()
	m.runSteps.Observe(float64(len(run.Steps)))
	m.runDuration.Observe(duration.Seconds())

	for _, step := range run.Steps {
		if step.Kind != agent.KindToolResult {
			continue
		}
		status := "ok"
		if !step.OK {
			status = step.ErrKind
		}
		m.toolDispatches.WithLabelValues(step.Tool, status).Inc()

		switch step.ErrKind {
		case string(tool.KindGuardrailBlocked), string(tool.KindUnsafeQuery):
			m.guardrailBlocks.WithLabelValues(step.ErrKind).Inc()
		}
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
