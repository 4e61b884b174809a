package loop

import "github.com/prometheus/client_golang/prometheus"

var (
	loopCallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnail_loop_callbacks_total",
			Help: "Total number of callbacks run on the loop.",
		},
	)

	loopFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnail_loop_faults_total",
			Help: "Total number of loop callbacks that panicked.",
		},
	)
)

func init() {
	prometheus.MustRegister(loopCallbacksTotal)
	prometheus.MustRegister(loopFaultsTotal)
}
