package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for localization runs and the daemon.
type Metrics struct {
	registry        *prometheus.Registry
	Runs            *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	RunIterations   prometheus.Histogram
	ToolCalls       *prometheus.CounterVec
	Tokens          *prometheus.CounterVec
	TransportErrs   *prometheus.CounterVec
	ModelUsage      *prometheus.CounterVec
	PolicyOverrides prometheus.Counter
}

// NewMetrics constructs a metrics registry with localizer collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genloc_runs_total",
		Help: "Localization runs by outcome",
	}, []string{"outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genloc_run_duration_seconds",
		Help:    "Localization run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})

	iters := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "genloc_run_iterations",
		Help:    "Backend calls made per localization run",
		Buckets: prometheus.LinearBuckets(1, 1, 12),
	})

	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genloc_tool_calls_total",
		Help: "Tool dispatches by tool and status",
	}, []string{"tool", "status"})

	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genloc_tokens_total",
		Help: "Tokens reported by completion backends",
	}, []string{"kind"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genloc_transport_errors_total",
		Help: "Transport-level errors by transport and reason",
	}, []string{"transport", "reason"})

	modelUsage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genloc_model_usage_total",
		Help: "Runs started per resolved model",
	}, []string{"model"})

	overrides := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "genloc_policy_violations_total",
		Help: "Tool call batches discarded because the turn forbade tool use",
	})

	reg.MustRegister(runs, durs, iters, toolCalls, tokens, trErrors, modelUsage, overrides)

	return &Metrics{
		registry:        reg,
		Runs:            runs,
		RunDuration:     durs,
		RunIterations:   iters,
		ToolCalls:       toolCalls,
		Tokens:          tokens,
		TransportErrs:   trErrors,
		ModelUsage:      modelUsage,
		PolicyOverrides: overrides,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records outcome, duration, backend calls and token usage of one run.
func (m *Metrics) RecordRun(outcome string, duration time.Duration, iterations, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.RunIterations.Observe(float64(iterations))
	m.Tokens.WithLabelValues("prompt").Add(float64(promptTokens))
	m.Tokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// RecordToolCall counts a single tool dispatch.
func (m *Metrics) RecordToolCall(tool, status string) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "unknown"
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
}

// RecordPolicyViolation counts a discarded tool call batch.
func (m *Metrics) RecordPolicyViolation() {
	if m == nil {
		return
	}
	m.PolicyOverrides.Inc()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}

// RecordModelUsage increments usage counter for a resolved model.
func (m *Metrics) RecordModelUsage(model string) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelUsage.WithLabelValues(model).Inc()
}
