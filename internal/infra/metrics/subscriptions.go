package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		entitlementExtensionsTotal,
		provisioningTotal,
		activeSubscriptions,
	)
}

var (
	// reason: payment|referral|promo|trial|bonus
	entitlementExtensionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_extensions_total",
			Help: "Entitlement extensions by reason.",
		},
		[]string{"reason"},
	)

	// result: created|extended|failed
	provisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_provisioning_total",
			Help: "Panel provisioning attempts by result.",
		},
		[]string{"result"},
	)

	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Users whose entitlement ends in the future.",
		},
	)
)

func IncEntitlementExtension(reason string) {
	entitlementExtensionsTotal.WithLabelValues(norm(reason)).Inc()
}

func IncProvisioning(result string) {
	provisioningTotal.WithLabelValues(norm(result)).Inc()
}

func SetActiveSubscriptions(n int) {
	activeSubscriptions.Set(float64(n))
}
