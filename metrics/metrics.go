// Package metrics exposes the writer's operational counters via
// prometheus/client_golang, the same promauto wiring pattern as
// adred-codev-ws_poc's internal/metrics package, scoped down to the
// handful of gauges and counters spec.md §4.G and §4.H already define.
// None of this is read on the hot path: the handler and supervisor call
// these setters from the same points they already touch for the
// diagnostic log lines.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors for one writer process.
type Metrics struct {
	messagesTotal      prometheus.Counter
	procLatencyMaxUs   prometheus.Gauge
	overThresholdTotal prometheus.Counter
	connectionState    *prometheus.GaugeVec
	consecutiveErrors  *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// New registers all collectors against the default registry on its first
// call; later calls return the same Metrics instead of registering again.
func New() *Metrics {
	defaultOnce.Do(func() { defaultMetrics = newMetrics() })
	return defaultMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		messagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qshm_messages_total",
			Help: "Total quote messages written to shared memory.",
		}),
		procLatencyMaxUs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "qshm_proc_latency_max_us",
			Help: "Maximum observed per-message processing latency, in microseconds.",
		}),
		overThresholdTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "qshm_over_threshold_total",
			Help: "Count of messages whose processing latency exceeded the slow threshold.",
		}),
		connectionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "qshm_connection_state",
			Help: "1 for the shard's current connection state, 0 otherwise.",
		}, []string{"shard", "state"}),
		consecutiveErrors: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "qshm_consecutive_errors",
			Help: "Consecutive connection failures observed by a shard's supervisor loop.",
		}, []string{"shard"}),
	}
}

// RecordMessage mirrors one handler.Handle call's latency accounting.
func (m *Metrics) RecordMessage(procUs uint64, overThreshold bool) {
	m.messagesTotal.Inc()
	if overThreshold {
		m.overThresholdTotal.Inc()
	}
}

// SetMaxLatency publishes the latency tracker's current running maximum.
func (m *Metrics) SetMaxLatency(maxUs uint64) {
	m.procLatencyMaxUs.Set(float64(maxUs))
}

// SetConnectionState records shardIndex's current state, zeroing the
// other known states so only one gauge reads 1 per shard at a time.
func (m *Metrics) SetConnectionState(shardIndex int, state string, allStates []string) {
	shard := shardLabel(shardIndex)
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.connectionState.WithLabelValues(shard, s).Set(v)
	}
}

// SetConsecutiveErrors records shardIndex's current failure streak.
func (m *Metrics) SetConsecutiveErrors(shardIndex int, count int) {
	m.consecutiveErrors.WithLabelValues(shardLabel(shardIndex)).Set(float64(count))
}

func shardLabel(shardIndex int) string {
	return strconv.Itoa(shardIndex)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
