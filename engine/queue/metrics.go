package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for task metrics.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDropped = "dropped"
)

// TasksProcessed counts handler attempts by action and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var TasksProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "petcore_queue_tasks_total",
		Help: "Total number of task attempts",
	},
	[]string{"action", "status"},
)

// TaskDuration observes how long each handler attempt took.
var TaskDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "petcore_queue_task_duration_seconds",
		Help:    "Task handler duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"action"},
)

// Depth is the number of tasks waiting, including the one in flight.
var Depth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "petcore_queue_depth",
		Help: "Number of queued tasks",
	},
)

// RegisterMetrics registers queue metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(TasksProcessed)
	reg.MustRegister(TaskDuration)
	reg.MustRegister(Depth)
}
