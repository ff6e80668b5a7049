package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WSReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarb_ws_reconnects_total",
		Help: "Number of websocket reconnect cycles",
	})

	WSConnectFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarb_ws_connect_failures_total",
		Help: "Number of failed websocket dial attempts",
	})

	WSNotifications = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarb_ws_notifications_total",
		Help: "Account-change notifications received",
	})

	DecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarb_decode_failures_total",
		Help: "Account payloads that could not be decoded",
	})

	TopDivergencePct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solarb_top_divergence_pct",
		Help: "Largest cross-venue price divergence (%) in the last scan",
	})

	OpportunitiesDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solarb_opportunities_total",
		Help: "Arbitrage opportunities at or above threshold",
	})

	AnalysisLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solarb_analysis_latency_seconds",
		Help:    "Time for one refresh+detect cycle",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		WSReconnects,
		WSConnectFailures,
		WSNotifications,
		DecodeFailures,
		TopDivergencePct,
		OpportunitiesDetected,
		AnalysisLatency,
	)
}
