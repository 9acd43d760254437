package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/streetball/api/pkg/transport"
)

// MetricsMiddleware records streetball_requests_total by method and status
// class, streetball_request_duration_seconds by method, and the number of
// requests in flight.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		InFlightRequests.Inc()
		defer InFlightRequests.Dec()

		start := time.Now()
		rec := transport.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		RequestsTotal.WithLabelValues(r.Method, statusClass(rec.Status())).Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// statusClass turns 404 into "4xx".
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
