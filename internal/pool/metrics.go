package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	activeSlots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inferpool",
			Subsystem: "pool",
			Name:      "active_slots",
			Help:      "Slots currently granted per server",
		},
		[]string{"server"},
	)

	maxSlots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inferpool",
			Subsystem: "pool",
			Name:      "max_slots",
			Help:      "Slot capacity per server",
		},
		[]string{"server"},
	)

	acquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "pool",
			Name:      "acquisitions_total",
			Help:      "Slots granted, by model",
		},
		[]string{"model"},
	)

	// unlabelled: model ids on a miss come straight from clients
	admissionMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "pool",
			Name:      "admission_misses_total",
			Help:      "Admission attempts that found no eligible server",
		},
	)

	releasesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "pool",
			Name:      "releases_total",
			Help:      "Slots returned to the pool",
		},
	)

	manifestRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferpool",
			Subsystem: "pool",
			Name:      "manifest_refresh_total",
			Help:      "Per-server manifest fetches, by result",
		},
		[]string{"server", "result"},
	)

	knownModels = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inferpool",
			Subsystem: "pool",
			Name:      "known_models",
			Help:      "Models reported by each server's last manifest",
		},
		[]string{"server"},
	)
)

func init() {
	prometheus.MustRegister(activeSlots, maxSlots, acquisitionsTotal, admissionMisses, releasesTotal, manifestRefreshTotal, knownModels)
}

// observeServer mirrors s into the gauges. Callers hold Pool.mu.
func observeServer(s *server) {
	activeSlots.WithLabelValues(s.url).Set(float64(s.active))
	maxSlots.WithLabelValues(s.url).Set(float64(s.maxConcurrency))
	knownModels.WithLabelValues(s.url).Set(float64(len(s.models)))
}
