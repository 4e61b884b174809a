package engine

import "github.com/prometheus/client_golang/prometheus"

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusRejected  = "rejected"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnail_jobs_total",
			Help: "Total number of thumbnail jobs by engine and outcome.",
		},
		[]string{"engine", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbnail_job_duration_seconds",
			Help:    "Time spent executing a thumbnail job on a worker.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"engine"},
	)

	jobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnail_jobs_in_flight",
			Help: "Jobs dispatched whose handler has not yet run.",
		},
	)

	resultBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbnail_result_bytes",
			Help:    "Size of encoded thumbnails in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(jobsInFlight)
	prometheus.MustRegister(resultBytes)
}
