package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/seller-payouts/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits requests per IP for unauthenticated routes.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem.Write(
				w,
				r,
				http.StatusTooManyRequests,
				problem.Type("rate-limit-exceeded"),
				http.StatusText(http.StatusTooManyRequests),
				fmt.Sprintf("Rate limit of %d req/s exceeded for this IP", rps),
			)
		}),
	)
}

// AuthRateLimiter limits authenticated callers. Sellers share one bucket per
// store; admins are keyed by user ID.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if storeID := StoreIDFromContext(r.Context()); storeID != "" {
				return "store:" + storeID, nil
			}
			if userID := UserIDFromContext(r.Context()); userID != "" {
				return "user:" + userID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem.Write(
				w,
				r,
				http.StatusTooManyRequests,
				problem.Type("rate-limit-exceeded"),
				http.StatusText(http.StatusTooManyRequests),
				fmt.Sprintf("Rate limit of %d req/s exceeded for this caller", rps),
			)
		}),
	)
}
