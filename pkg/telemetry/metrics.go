package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricForceStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "force_stops_total",
		Help:      "Responses force-stopped by the safety monitor, by trigger.",
	}, []string{"trigger"})

	metricDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "authorization_denials_total",
		Help:      "Invocations denied by the permission guard, by reason.",
	}, []string{"reason"})

	metricTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "tasks_executed_total",
		Help:      "Invocations executed, by command kind.",
	}, []string{"kind"})

	metricReentrancyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "reentrancy_rejections_total",
		Help:      "Requests rejected because the agent already had an in-flight response.",
	})

	metricMemoryCompressions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "memory_compressions_total",
		Help:      "Agent memory records compressed to fit the token budget.",
	})
)

// RecordForceStop counts a safety-monitor force-stop by trigger category.
func RecordForceStop(trigger string) {
	metricForceStops.WithLabelValues(trigger).Inc()
}

// RecordDenial counts a guard denial by reason.
func RecordDenial(reason string) {
	metricDenials.WithLabelValues(reason).Inc()
}

// RecordTask counts one executed invocation by kind.
func RecordTask(kind string) {
	metricTasks.WithLabelValues(kind).Inc()
}

// RecordReentrancyRejection counts a rejected concurrent request.
func RecordReentrancyRejection() {
	metricReentrancyRejections.Inc()
}

// RecordMemoryCompression counts one memory compression pass.
func RecordMemoryCompression() {
	metricMemoryCompressions.Inc()
}
