package metrics

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(pgConns, pgAcquireWaits) }

var (
	pgConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "postgres_pool_connections",
			Help: "Postgres pool connections by state (acquired, idle, max).",
		},
		[]string{"state"},
	)
	pgAcquireWaits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "postgres_pool_empty_acquires",
			Help: "Acquires that had to wait for a free connection since start.",
		},
	)
)

// ObservePool copies one pgxpool snapshot into the gauges.
func ObservePool(s *pgxpool.Stat) {
	pgConns.WithLabelValues("acquired").Set(float64(s.AcquiredConns()))
	pgConns.WithLabelValues("idle").Set(float64(s.IdleConns()))
	pgConns.WithLabelValues("max").Set(float64(s.MaxConns()))
	pgAcquireWaits.Set(float64(s.EmptyAcquireCount()))
}
