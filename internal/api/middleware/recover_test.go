package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecoverMiddleware(t *testing.T) {
	recoverer := RecoverMiddleware(zap.NewNop())

	t.Run("panic becomes a problem response", func(t *testing.T) {
		h := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("ledger exploded")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/stores/x/wallet", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "unexpected server error", body["detail"])
	})

	t.Run("panic after the response started", func(t *testing.T) {
		h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("partial"))
			panic("stream broke")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/stores/x/activity/export", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "partial", rr.Body.String())
	})

	t.Run("aborted handler keeps panicking", func(t *testing.T) {
		h := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		assert.Panics(t, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}

func TestStatusRecorderFlushes(t *testing.T) {
	rr := httptest.NewRecorder()
	var w http.ResponseWriter = &statusRecorder{ResponseWriter: rr}

	f, ok := w.(http.Flusher)
	require.True(t, ok)
	f.Flush()
	assert.True(t, rr.Flushed)
	assert.Equal(t, http.StatusOK, w.(*statusRecorder).status)
}
