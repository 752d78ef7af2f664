package watcher

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollCyclesTotal   prometheus.Counter
	pollFailuresTotal *prometheus.CounterVec
	rotationsTotal    *prometheus.CounterVec
	watcherState      prometheus.Gauge

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics provides methods to record watch activity.
type Metrics struct{}

// NewMetrics creates a new Metrics instance. Recording is a no-op until
// InitMetrics has been called.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers all Prometheus metrics. Call once at startup when
// the metrics endpoint is enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		pollCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "credwatch_poll_cycles_total",
			Help: "Total number of rotation poll cycles executed",
		})

		pollFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credwatch_poll_failures_total",
				Help: "Total number of per-secret fetch or parse failures absorbed during polling",
			},
			[]string{"store_key"},
		)

		rotationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credwatch_rotations_observed_total",
				Help: "Total number of tracked secrets observed to have rotated",
			},
			[]string{"store_key"},
		)

		watcherState = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "credwatch_watcher_state",
			Help: "Watcher lifecycle state (0=uninitialized, 1=loading, 2=ready, 3=rotation_detected, 4=failed, 5=stopped)",
		})

		metricsRegistered = true
	})
}

// RecordPollCycle counts one executed poll cycle.
func (m *Metrics) RecordPollCycle() {
	if !metricsRegistered {
		return
	}
	pollCyclesTotal.Inc()
}

// RecordPollFailure counts one absorbed per-secret poll failure.
func (m *Metrics) RecordPollFailure(storeKey string) {
	if !metricsRegistered {
		return
	}
	pollFailuresTotal.WithLabelValues(storeKey).Inc()
}

// RecordRotation counts one observed rotation.
func (m *Metrics) RecordRotation(storeKey string) {
	if !metricsRegistered {
		return
	}
	rotationsTotal.WithLabelValues(storeKey).Inc()
}

// SetState exposes the watcher lifecycle state as a gauge.
func (m *Metrics) SetState(s watchState) {
	if !metricsRegistered {
		return
	}
	watcherState.Set(float64(s))
}
