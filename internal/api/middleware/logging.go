package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingMiddleware emits structured request logs enriched with the trace id
// and, once authenticated, the caller.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.status),
				zap.String("trace_id", TraceIDFromContext(r.Context())),
				zap.Duration("duration", time.Since(start)),
			}
			if userID := UserIDFromContext(r.Context()); userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}
			if storeID := StoreIDFromContext(r.Context()); storeID != "" {
				fields = append(fields, zap.String("store_id", storeID))
			}
			if rw.status >= http.StatusInternalServerError {
				logger.Error("http_request", fields...)
				return
			}
			logger.Info("http_request", fields...)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// Flush lets streaming handlers such as the statement export push batches
// through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		if sr.status == 0 {
			sr.status = http.StatusOK
		}
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
