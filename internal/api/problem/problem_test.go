package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWithExtensions(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/stores/abc/payouts", nil)
	req.Header.Set("X-Trace-ID", "trace-1")
	rr := httptest.NewRecorder()

	WriteWithExtensions(rr, req, http.StatusUnprocessableEntity, Type("payout/insufficient-balance"), "", "too much", map[string]any{
		"available_micros": 42,
		"status":           999,
	})

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, baseTypeURL+"payout/insufficient-balance", body["type"])
	assert.Equal(t, "Unprocessable Entity", body["title"])
	assert.EqualValues(t, http.StatusUnprocessableEntity, body["status"], "extensions cannot override core members")
	assert.Equal(t, "too much", body["detail"])
	assert.Equal(t, "/v1/stores/abc/payouts", body["instance"])
	assert.Equal(t, "trace-1", body["request_id"])
	assert.EqualValues(t, 42, body["available_micros"])
}

func TestWriteDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("X-Trace-ID", "from-response")
	Write(rr, nil, http.StatusNotFound, "", "", "missing")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "about:blank", body["type"])
	assert.Equal(t, "Not Found", body["title"])
	assert.Equal(t, "from-response", body["request_id"])
}
