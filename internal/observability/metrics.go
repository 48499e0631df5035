package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	runTotal    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	nodeTotal    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec

	modelCallTotal    *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec

	toolCallTotal    *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	retryAttemptsTotal *prometheus.CounterVec
	branchesActive     *prometheus.GaugeVec
	iterationsUsed     *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
	registry    *prometheus.Registry
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			runTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "graph_run_total",
					Help: "Total graph runs by graph and status.",
				},
				[]string{"graph", "status"},
			),
			runDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "graph_run_duration_seconds",
					Help:    "Graph run duration in seconds by graph.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"graph"},
			),
			nodeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "node_execution_total",
					Help: "Total node executions by graph, node and status.",
				},
				[]string{"graph", "node", "status"},
			),
			nodeDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "node_execution_duration_seconds",
					Help:    "Node execution duration in seconds by graph and node.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"graph", "node"},
			),
			modelCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_call_total",
					Help: "Total model calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			modelCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "model_call_duration_seconds",
					Help:    "Model round-trip duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			toolCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_call_total",
					Help: "Total tool calls by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_call_duration_seconds",
					Help:    "Tool call duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			retryAttemptsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "retry_attempts_total",
					Help: "Total retry wrapper attempts by wrapper and outcome.",
				},
				[]string{"wrapper", "outcome"},
			),
			branchesActive: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "fanout_branches_active",
					Help: "Currently executing fan-out branches by graph.",
				},
				[]string{"graph"},
			),
			iterationsUsed: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "run_iterations_used",
					Help:    "Model/tool iterations consumed per run by graph.",
					Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
				},
				[]string{"graph"},
			),
		}

		registry = prometheus.NewRegistry()
		registry.MustRegister(
			m.runTotal,
			m.runDuration,
			m.nodeTotal,
			m.nodeDuration,
			m.modelCallTotal,
			m.modelCallDuration,
			m.toolCallTotal,
			m.toolCallDuration,
			m.retryAttemptsTotal,
			m.branchesActive,
			m.iterationsUsed,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered forces metric registration. Safe to call from any package init path.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns an HTTP handler exposing the engine metrics.
func Handler() http.Handler {
	getMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRun records a completed graph run.
func RecordRun(graph string, duration time.Duration, success bool) {
	m := getMetrics()
	m.runTotal.WithLabelValues(graph, statusLabel(success)).Inc()
	m.runDuration.WithLabelValues(graph).Observe(duration.Seconds())
}

// RecordNodeExecution records a single node execution.
func RecordNodeExecution(graph, node string, duration time.Duration, success bool) {
	m := getMetrics()
	m.nodeTotal.WithLabelValues(graph, node, statusLabel(success)).Inc()
	m.nodeDuration.WithLabelValues(graph, node).Observe(duration.Seconds())
}

// RecordModelCall records a model round trip.
func RecordModelCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.modelCallTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordToolCall records a tool call.
func RecordToolCall(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolCallTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordRetryAttempt records one retry wrapper attempt and its outcome.
func RecordRetryAttempt(wrapper string, success bool) {
	getMetrics().retryAttemptsTotal.WithLabelValues(wrapper, statusLabel(success)).Inc()
}

// SetActiveBranches sets the number of in-flight fan-out branches for a graph.
func SetActiveBranches(graph string, n int) {
	getMetrics().branchesActive.WithLabelValues(graph).Set(float64(n))
}

// RecordIterationsUsed records how many iterations a run consumed.
func RecordIterationsUsed(graph string, n int) {
	getMetrics().iterationsUsed.WithLabelValues(graph).Observe(float64(n))
}
