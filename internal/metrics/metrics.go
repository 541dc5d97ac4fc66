package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	TicksTotal    *prometheus.CounterVec // labels: trigger, outcome
	FetchDuration prometheus.Histogram
	StaleResults  prometheus.Counter
	Bars          prometheus.Gauge
	WSClients     prometheus.Gauge
	State         prometheus.Gauge // 0=idle, 1=fetching, 2=rendering, 3=error

	gatherer prometheus.Gatherer
}

// NewMetrics creates all metrics and registers them on reg. A nil reg uses a
// fresh private registry so tests never collide.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechart_ticks_total",
			Help: "Refresh cycles by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "livechart_fetch_duration_seconds",
			Help:    "Provider fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livechart_stale_results_total",
			Help: "Tick results discarded because a newer tick or symbol superseded them",
		}),
		Bars: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livechart_bars",
			Help: "Bars in the currently displayed series",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livechart_ws_clients",
			Help: "Connected dashboard websocket clients",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livechart_controller_state",
			Help: "Refresh controller state (0=idle, 1=fetching, 2=rendering, 3=error)",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.TicksTotal, m.FetchDuration, m.StaleResults, m.Bars, m.WSClients, m.State)
	return m
}

// ObserveFetch records one fetch latency.
func (m *Metrics) ObserveFetch(d time.Duration) {
	m.FetchDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
