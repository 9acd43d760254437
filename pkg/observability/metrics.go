// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the StreetBall API.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIBuckets defines histogram buckets suited for short API requests,
// ranging from 5ms to 10s.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetball_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streetball_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks the number of requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streetball_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// AuthenticationsTotal counts gate authentication outcomes by strategy
	// and result ("ok" or a failure code such as "missing_credential").
	AuthenticationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetball_authentications_total",
			Help: "Authentication attempts",
		},
		[]string{"method", "result"},
	)

	// AuthorizationDenialsTotal counts requests denied by the role check.
	AuthorizationDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetball_authorization_denials_total",
			Help: "Authorization denials",
		},
		[]string{"required"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetball_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"role"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		AuthenticationsTotal,
		AuthorizationDenialsTotal,
		RateLimitRejectedTotal,
	)
}

// Handler returns the Prometheus exposition handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
