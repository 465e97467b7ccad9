package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency across all routes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "kubeops",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// CommandsClassifiedTotal counts parsed commands by kind.
var CommandsClassifiedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kubeops",
		Name:      "commands_classified_total",
		Help:      "Total number of chat commands classified, by kind.",
	},
	[]string{"kind"},
)

// QueueLength reports the current priority queue depth.
var QueueLength = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "kubeops",
		Name:      "queue_length",
		Help:      "Current number of EXECUTE commands awaiting execution.",
	},
)

// MutexHoldSeconds tracks how long the worker holds the execution mutex.
var MutexHoldSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "kubeops",
		Name:      "mutex_hold_seconds",
		Help:      "Duration the execution mutex is held per command.",
		Buckets:   prometheus.DefBuckets,
	},
)

// AdapterCallSeconds tracks Kubernetes adapter call duration by operation
// and outcome.
var AdapterCallSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "kubeops",
		Name:      "adapter_call_seconds",
		Help:      "Kubernetes adapter call duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op", "outcome"},
)

// QuotaRejectedTotal counts EXECUTE commands rejected for quota exhaustion.
var QuotaRejectedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "kubeops",
		Name:      "quota_rejected_total",
		Help:      "Total number of EXECUTE commands rejected for quota exhaustion.",
	},
)

// NewMetricsRegistry creates a Prometheus registry with Go/process
// collectors and every kubeops_* metric registered for collection.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
		CommandsClassifiedTotal,
		QueueLength,
		MutexHoldSeconds,
		AdapterCallSeconds,
		QuotaRejectedTotal,
	)
	return reg
}
