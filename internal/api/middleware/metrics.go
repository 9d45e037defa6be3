package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/go-chi/chi/v5"
)

// MetricsMiddleware records request durations keyed by route pattern, so
// store and payout ids never become label values.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		observability.ObserveHTTP(r.Method, routePattern(r), rw.status, time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
