package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		panelRequestsTotal,
		panelRequestDuration,
		panelTokenRefreshTotal,
	)
}

var (
	panelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_requests_total",
			Help: "Panel API calls by operation and HTTP status (0 for transport errors).",
		},
		[]string{"op", "status"},
	)

	panelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panel_request_duration_seconds",
			Help:    "Panel API latency by operation.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
		[]string{"op"},
	)

	panelTokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_token_refresh_total",
			Help: "Panel admin token acquisitions by result.",
		},
		[]string{"result"},
	)
)

func ObservePanelRequest(op string, status int, d time.Duration) {
	panelRequestsTotal.WithLabelValues(norm(op), strconv.Itoa(status)).Inc()
	panelRequestDuration.WithLabelValues(norm(op)).Observe(d.Seconds())
}

func IncPanelTokenRefresh(result string) {
	panelTokenRefreshTotal.WithLabelValues(norm(result)).Inc()
}
