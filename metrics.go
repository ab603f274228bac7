package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	metricWorkersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "openworkers",
		Subsystem: "runtime",
		Name:      "workers_created_total",
		Help:      "Workers constructed since process start.",
	})

	metricTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openworkers",
		Subsystem: "runtime",
		Name:      "tasks_total",
		Help:      "Tasks executed, by kind and outcome.",
	}, []string{"kind", "outcome"})

	metricTaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "openworkers",
		Subsystem: "runtime",
		Name:      "task_duration_seconds",
		Help:      "Wall-clock task duration.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"kind"})

	metricTerminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openworkers",
		Subsystem: "runtime",
		Name:      "terminations_total",
		Help:      "Forced terminations, by reason.",
	}, []string{"reason"})

	metricBufferBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "openworkers",
		Subsystem: "runtime",
		Name:      "array_buffer_in_flight_bytes",
		Help:      "Net array-buffer bytes reserved across all workers.",
	})
)

// RegisterMetrics registers the runtime's collectors with r. Call once
// per registry; typically RegisterMetrics(prometheus.DefaultRegisterer).
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		metricWorkersCreated,
		metricTasks,
		metricTaskDuration,
		metricTerminations,
		metricBufferBytes,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
