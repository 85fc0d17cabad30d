package relay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cryptex_connected_sessions",
			Help: "Number of registered sessions",
		},
	)
	envelopesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptex_envelopes_routed_total",
			Help: "Number of envelopes forwarded, by type",
		},
		[]string{"type"},
	)
	authFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptex_auth_failures_total",
			Help: "Number of rejected authentication attempts",
		},
	)
	envelopesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptex_envelopes_dropped_total",
			Help: "Number of envelopes dropped (malformed or unroutable)",
		},
	)
)

// serveMetrics exposes registered metrics over HTTP.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(addr, mux)
}
