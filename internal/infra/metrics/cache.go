package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tariffCacheLookups) }

// tariffCacheLookups counts Redis lookups in front of the tariff table.
// view is "tariff" for single rows and "tariff_list" for the active listing.
var tariffCacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tariff_cache_lookups_total",
		Help: "Tariff cache lookups by view and outcome (hit, miss).",
	},
	[]string{"view", "outcome"},
)

func IncTariffCache(view string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	tariffCacheLookups.WithLabelValues(norm(view), outcome).Inc()
}
