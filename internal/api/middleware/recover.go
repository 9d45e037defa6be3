package middleware

import (
	"net/http"

	"github.com/ayo6706/seller-payouts/internal/api/problem"
	"github.com/ayo6706/seller-payouts/internal/observability"
	"go.uber.org/zap"
)

// RecoverMiddleware converts handler panics into a 500 problem response.
// Aborted handlers keep panicking so net/http can drop the connection. Once a
// handler has started writing, only the log and the counter are recorded.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &statusRecorder{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				route := routePattern(r)
				observability.IncrementHTTPPanic(route)
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.Stack("stack"),
					zap.String("route", route),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("user_id", UserIDFromContext(r.Context())),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
				)
				if rw.status != 0 {
					return
				}
				problem.Write(
					w,
					r,
					http.StatusInternalServerError,
					problem.Type("internal-server-error"),
					http.StatusText(http.StatusInternalServerError),
					"unexpected server error",
				)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}
