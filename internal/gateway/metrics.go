package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	upstreamTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "gateway",
			Name:      "exchanges_total",
			Help:      "Proxied exchanges by outcome",
		},
		[]string{"outcome"},
	)

	upstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferpool",
			Subsystem: "gateway",
			Name:      "exchange_duration_seconds",
			Help:      "Time spent proxying to the backend, slot held",
			Buckets:   prometheus.DefBuckets,
		},
	)

	queueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferpool",
			Subsystem: "gateway",
			Name:      "queue_wait_seconds",
			Help:      "Time spent waiting for a slot before forwarding",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(upstreamTotal, upstreamDuration, queueWait)
}
