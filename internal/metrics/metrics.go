// Package metrics exposes Prometheus counters for the redemption and
// verification paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupgate_redemptions_total",
			Help: "License key redemption attempts by outcome.",
		},
		[]string{"outcome"},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupgate_verifications_total",
			Help: "Whitelist verification requests by result.",
		},
		[]string{"result"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupgate_rate_limited_total",
			Help: "Requests rejected by rate limiting, by surface.",
		},
		[]string{"surface"},
	)
)

// Init registers all metrics with the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(RedemptionsTotal, VerificationsTotal, RateLimitedTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
