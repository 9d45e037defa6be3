package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// TraceMiddleware ensures each request has a trace identifier propagated via
// context and headers. An upstream X-Request-ID is reused when no trace id is set.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := strings.TrimSpace(r.Header.Get("X-Trace-ID"))
		if traceID == "" {
			traceID = strings.TrimSpace(r.Header.Get("X-Request-ID"))
		}
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.NewString()
		}
		r.Header.Set("X-Trace-ID", traceID)
		ctx := contextWithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey, traceID)
}
