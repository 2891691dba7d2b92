package dispatcher

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferpool",
			Subsystem: "dispatcher",
			Name:      "queue_depth",
			Help:      "Requests waiting for a slot",
		},
	)

	waitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferpool",
			Subsystem: "dispatcher",
			Name:      "wait_seconds",
			Help:      "Time from submit to slot grant",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	cancellationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "dispatcher",
			Name:      "cancellations_total",
			Help:      "Submits cancelled by the caller, by stage (queued or granted)",
		},
		[]string{"stage"},
	)

	doubleResolveTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "dispatcher",
			Name:      "double_resolve_total",
			Help:      "Slots released because the request was cancelled while being granted",
		},
	)

	loopStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "dispatcher",
			Name:      "loop_starts_total",
			Help:      "Matching loops started",
		},
	)

	loopFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "dispatcher",
			Name:      "loop_faults_total",
			Help:      "Matching loops terminated by a panic",
		},
	)
)

func init() {
	prometheus.MustRegister(queueDepth, waitSeconds, cancellationsTotal, doubleResolveTotal, loopStartsTotal, loopFaultsTotal)
}
