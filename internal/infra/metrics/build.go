package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(appInfo) }

var appInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "vpn_bot_info",
		Help: "Always 1; labels identify the running release.",
	},
	[]string{"version", "commit", "go_version"},
)

func SetBuildInfo(version, commit string) {
	appInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
