// Package metrics exposes Prometheus counters for the sale and wallet
// refresh loops and for approve/confirm transactions. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ifo"

// Result labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultStale   = "stale"
	ResultTimeout = "timeout"
)

type Metrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	transactions    *prometheus.CounterVec
	blockHeight     prometheus.Gauge
	saleProgress    prometheus.Gauge
	pendingTx       prometheus.Gauge
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.refreshes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "snapshot refreshes by component and result",
		},
		[]string{"component", "result"},
	)
	m.refreshDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "time spent on one batched snapshot read",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component"},
	)
	m.transactions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "approve and confirm submissions by action, phase and result",
		},
		[]string{"kind", "phase", "result"},
	)
	m.blockHeight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "last observed block height",
		},
	)
	m.saleProgress = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sale_progress_percent",
			Help:      "progress of the tracked offering",
		},
	)
	m.pendingTx = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_tx",
			Help:      "1 while a wallet transaction is outstanding",
		},
	)
	return m
}

func (m *Metrics) Refresh(component, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(component, result).Inc()
	if result != ResultStale {
		m.refreshDuration.WithLabelValues(component).Observe(took.Seconds())
	}
}

func (m *Metrics) Transaction(kind, phase, result string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, phase, result).Inc()
}

func (m *Metrics) BlockHeight(h uint64) {
	if m == nil {
		return
	}
	m.blockHeight.Set(float64(h))
}

func (m *Metrics) SaleProgress(p float64) {
	if m == nil {
		return
	}
	m.saleProgress.Set(p)
}

func (m *Metrics) PendingTx(pending bool) {
	if m == nil {
		return
	}
	if pending {
		m.pendingTx.Set(1)
		return
	}
	m.pendingTx.Set(0)
}
