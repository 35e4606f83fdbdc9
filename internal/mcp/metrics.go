package mcp

import (
	"encoding/json"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics tracks per-tool call/error counts and latency. Counters are
// process-global, as spec requires: every call from every goroutine updates
// the same series, and Prometheus's own atomics give us the per-field
// atomicity that's all the guarantee needed here.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates a fresh, isolated metrics registry — not the global
// prometheus.DefaultRegisterer, so tests and multiple Server instances in
// the same process never collide on metric names.
func NewMetrics() *Metrics {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmail_tool_calls_total",
		Help: "Total tool invocations, by tool name.",
	}, []string{"tool"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmail_tool_errors_total",
		Help: "Total tool invocations that returned an error, by tool name and error type.",
	}, []string{"tool", "error_type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentmail_tool_call_duration_seconds",
		Help:    "Tool call latency in seconds, by tool name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(calls, errs, duration)

	return &Metrics{registry: reg, calls: calls, errors: errs, duration: duration}
}

// ObserveCall records one tool invocation: its duration always, and an
// error-type bump only on failure.
func (m *Metrics) ObserveCall(tool string, errorType string, seconds float64) {
	m.calls.WithLabelValues(tool).Inc()
	m.duration.WithLabelValues(tool).Observe(seconds)
	if errorType != "" {
		m.errors.WithLabelValues(tool, errorType).Inc()
	}
}

// toolMetric is one tool's gathered counters, shaped for JSON rendering.
type toolMetric struct {
	Tool         string             `json:"tool"`
	Calls        float64            `json:"calls"`
	Errors       float64            `json:"errors"`
	ErrorsByType map[string]float64 `json:"errors_by_type,omitempty"`
	P50Seconds   float64            `json:"p50_seconds,omitempty"`
}

// snapshot gathers the registry into a per-tool summary for resource://tooling/metrics.
func (m *Metrics) snapshot() ([]toolMetric, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	byTool := map[string]*toolMetric{}
	get := func(tool string) *toolMetric {
		tm, ok := byTool[tool]
		if !ok {
			tm = &toolMetric{Tool: tool, ErrorsByType: map[string]float64{}}
			byTool[tool] = tm
		}
		return tm
	}

	for _, fam := range families {
		switch fam.GetName() {
		case "agentmail_tool_calls_total":
			for _, mf := range fam.GetMetric() {
				get(labelValue(mf, "tool")).Calls = mf.GetCounter().GetValue()
			}
		case "agentmail_tool_errors_total":
			for _, mf := range fam.GetMetric() {
				tm := get(labelValue(mf, "tool"))
				errType := labelValue(mf, "error_type")
				v := mf.GetCounter().GetValue()
				tm.Errors += v
				tm.ErrorsByType[errType] = v
			}
		case "agentmail_tool_call_duration_seconds":
			for _, mf := range fam.GetMetric() {
				tm := get(labelValue(mf, "tool"))
				tm.P50Seconds = medianFromHistogram(mf.GetHistogram())
			}
		}
	}

	out := make([]toolMetric, 0, len(byTool))
	for _, tm := range byTool {
		if len(tm.ErrorsByType) == 0 {
			tm.ErrorsByType = nil
		}
		out = append(out, *tm)
	}
	return out, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// medianFromHistogram approximates the median from a histogram's cumulative
// bucket counts — good enough for a diagnostics resource, not a precision
// SLO dashboard.
func medianFromHistogram(h *dto.Histogram) float64 {
	total := h.GetSampleCount()
	if total == 0 {
		return 0
	}
	half := total / 2
	for _, b := range h.GetBucket() {
		if b.GetCumulativeCount() >= half {
			return b.GetUpperBound()
		}
	}
	return 0
}

// MetricsResource exposes resource://tooling/metrics: a JSON snapshot of
// per-tool call counts, error counts (by error type), and approximate
// median latency.
type MetricsResource struct {
	metrics *Metrics
}

// NewMetricsResource wraps metrics for resource registration.
func NewMetricsResource(metrics *Metrics) *MetricsResource {
	return &MetricsResource{metrics: metrics}
}

func (r *MetricsResource) Definition() ResourceDefinition {
	return ResourceDefinition{
		URI:         "resource://tooling/metrics",
		Name:        "tool_metrics",
		Description: "Per-tool call counts, error counts by type, and approximate median latency.",
		MimeType:    "application/json",
	}
}

func (r *MetricsResource) Read(_ url.Values) (*ResourcesReadResult, error) {
	snapshot, err := r.metrics.snapshot()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return &ResourcesReadResult{
		Contents: []ResourceContent{{
			URI:      "resource://tooling/metrics",
			MimeType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
