package telemetry

// GateMetrics adapts the package-level Prometheus collectors to
// chatapi.Metrics, so pkg/chatapi never imports Prometheus directly.
type GateMetrics struct{}

// ObserveClassified increments CommandsClassifiedTotal for kind.
func (GateMetrics) ObserveClassified(kind string) {
	CommandsClassifiedTotal.WithLabelValues(kind).Inc()
}

// WorkerMetrics adapts the package-level Prometheus collectors to
// worker.Metrics, so pkg/worker never imports Prometheus directly.
type WorkerMetrics struct{}

// ObserveMutexHold records one mutex-hold duration sample.
func (WorkerMetrics) ObserveMutexHold(seconds float64) {
	MutexHoldSeconds.Observe(seconds)
}

// ObserveAdapterCall records one Kubernetes adapter call duration sample.
func (WorkerMetrics) ObserveAdapterCall(op, outcome string, seconds float64) {
	AdapterCallSeconds.WithLabelValues(op, outcome).Observe(seconds)
}
