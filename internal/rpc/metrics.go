package rpc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics collects delivery and dispatch statistics. A nil *metrics is valid
// and records nothing, so consumers built without a metrics port skip the
// whole subsystem.
type metrics struct {
	registry *prometheus.Registry

	deliveriesTotal *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	dispatchSeconds *prometheus.HistogramVec
}

func newMetricVecs() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec) {
	deliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardlink",
			Subsystem: "consumer",
			Name:      "deliveries_total",
			Help:      "Total number of broker deliveries received, by queue",
		},
		[]string{"queue"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardlink",
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Total number of synchronous dispatch outcomes, by category",
		},
		[]string{"category"},
	)
	seconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shardlink",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time spent in synchronous dispatch, by namespace",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"namespace"},
	)
	return deliveries, outcomes, seconds
}

func newMetrics() (*metrics, error) {
	m := &metrics{registry: prometheus.NewRegistry()}
	m.deliveriesTotal, m.outcomesTotal, m.dispatchSeconds = newMetricVecs()

	collectors := []prometheus.Collector{
		m.deliveriesTotal,
		m.outcomesTotal,
		m.dispatchSeconds,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) recordDelivery(queue string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(queue).Inc()
}

func (m *metrics) recordOutcome(category ErrorCategory) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(string(category)).Inc()
}

func (m *metrics) observeDispatch(namespace string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatchSeconds.WithLabelValues(namespace).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
