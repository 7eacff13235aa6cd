// Package metrics exposes the bot's prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "venue_arb"

type Metrics struct {
	Registry *prometheus.Registry

	Cycles        prometheus.Counter
	CyclesAborted *prometheus.CounterVec // by stage
	Opportunities prometheus.Counter
	PairsSkipped  *prometheus.CounterVec // by reason
	Executions    *prometheus.CounterVec // by outcome
	Bans          prometheus.Counter
	BannedPairs   prometheus.Gauge
	StageLatency  *prometheus.HistogramVec
	LastBlock     prometheus.Gauge
	Reconnects    prometheus.Counter
	GasPriceGwei  prometheus.Gauge
	BestProfitUSD prometheus.Gauge
}

// New registers every collector on a fresh registry so tests never collide
// with the global one.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Evaluation cycles started.",
		}),
		CyclesAborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_aborted_total",
			Help: "Cycles abandoned before evaluation, by failing stage.",
		}, []string{"stage"}),
		Opportunities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "opportunities_total",
			Help: "Qualifying opportunities found.",
		}),
		PairsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pairs_skipped_total",
			Help: "Pairs not evaluated, by reason.",
		}, []string{"reason"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "executions_total",
			Help: "Execution attempts by outcome.",
		}, []string{"outcome"}),
		Bans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bans_total",
			Help: "Pool pairs banned after repeated reverts.",
		}),
		BannedPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "banned_pairs",
			Help: "Pool pairs currently banned.",
		}),
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Cycle stage latency.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"stage"}),
		LastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_block",
			Help: "Block number of the last completed cycle.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnects_total",
			Help: "Head subscription reconnects.",
		}),
		GasPriceGwei: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gas_price_gwei",
			Help: "Gas price used for profit estimates.",
		}),
		BestProfitUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_profit_usd",
			Help: "Net profit of the top-ranked opportunity in the last cycle.",
		}),
	}

	m.Registry.MustRegister(
		m.Cycles, m.CyclesAborted, m.Opportunities, m.PairsSkipped, m.Executions,
		m.Bans, m.BannedPairs, m.StageLatency, m.LastBlock, m.Reconnects,
		m.GasPriceGwei, m.BestProfitUSD,
	)
	return m
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
