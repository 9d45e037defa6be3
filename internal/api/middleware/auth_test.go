package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret-0123456789abcdef"

func configureJWT(t *testing.T) {
	t.Helper()
	SetJWTSecret(testSecret)
	SetJWTValidation("seller-payouts-test", "seller-payouts-api-test")
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	base := jwt.MapClaims{
		"iss": "seller-payouts-test",
		"aud": "seller-payouts-api-test",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, base).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	configureJWT(t)
	storeID := uuid.NewString()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", UserIDFromContext(r.Context()))
		w.Header().Set("X-Role", UserRoleFromContext(r.Context()))
		w.Header().Set("X-Store", StoreIDFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Token abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
		{
			name:       "seller with store",
			header:     "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u1", "role": RoleSeller, "store_id": storeID}),
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "seller without store",
			header:     "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u1", "role": RoleSeller}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown role",
			header:     "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u1", "role": "user", "store_id": storeID}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "subject mismatch",
			header:     "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u1", "sub": "u2", "role": RoleAdmin}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong audience",
			header:     "Bearer " + signToken(t, jwt.MapClaims{"user_id": "u1", "role": RoleAdmin, "aud": "elsewhere"}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "admin",
			header:     "Bearer " + signToken(t, jwt.MapClaims{"user_id": "ops", "role": RoleAdmin}),
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			AuthMiddleware(ok).ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
			if tc.wantStatus != http.StatusNoContent {
				assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			}
		})
	}

	t.Run("claims reach the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"user_id": "u9", "role": RoleSeller, "store_id": storeID}))
		rr := httptest.NewRecorder()
		AuthMiddleware(ok).ServeHTTP(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "u9", rr.Header().Get("X-User"))
		assert.Equal(t, RoleSeller, rr.Header().Get("X-Role"))
		assert.Equal(t, storeID, rr.Header().Get("X-Store"))
	})
}

func TestRequireStoreAccess(t *testing.T) {
	configureJWT(t)
	own := uuid.New()
	other := uuid.New()

	r := chi.NewRouter()
	r.Use(AuthMiddleware)
	r.With(RequireStoreAccess).Get("/v1/stores/{storeID}/wallet", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.With(RequireRole(RoleAdmin)).Post("/v1/admin/settlement/run", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	seller := "Bearer " + signToken(t, jwt.MapClaims{"user_id": "s1", "role": RoleSeller, "store_id": own.String()})
	admin := "Bearer " + signToken(t, jwt.MapClaims{"user_id": "a1", "role": RoleAdmin})

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "seller own store", method: http.MethodGet, path: "/v1/stores/" + own.String() + "/wallet", token: seller, wantStatus: http.StatusOK},
		{name: "seller other store", method: http.MethodGet, path: "/v1/stores/" + other.String() + "/wallet", token: seller, wantStatus: http.StatusForbidden},
		{name: "admin any store", method: http.MethodGet, path: "/v1/stores/" + other.String() + "/wallet", token: admin, wantStatus: http.StatusOK},
		{name: "malformed store id", method: http.MethodGet, path: "/v1/stores/nope/wallet", token: admin, wantStatus: http.StatusBadRequest},
		{name: "seller on admin route", method: http.MethodPost, path: "/v1/admin/settlement/run", token: seller, wantStatus: http.StatusForbidden},
		{name: "admin on admin route", method: http.MethodPost, path: "/v1/admin/settlement/run", token: admin, wantStatus: http.StatusOK},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Authorization", tc.token)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "upstream-1", seen)
	assert.Equal(t, "upstream-1", rr.Header().Get("X-Trace-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}
