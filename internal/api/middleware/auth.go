package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/seller-payouts/internal/api/problem"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	userContextKey  contextKey = "user_id"
	roleContextKey  contextKey = "user_role"
	storeContextKey contextKey = "store_id"
	traceContextKey contextKey = "trace_id"
)

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

var jwtSecret []byte
var jwtIssuer string
var jwtAudience string

// authClaims carries the caller identity. Sellers are bound to one store;
// admins may act on any store and leave store_id empty.
type authClaims struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	StoreID string `json:"store_id,omitempty"`
	jwt.RegisteredClaims
}

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

func JWTSecret() []byte {
	clone := make([]byte, len(jwtSecret))
	copy(clone, jwtSecret)
	return clone
}

func JWTIssuer() string {
	return jwtIssuer
}

func JWTAudience() string {
	return jwtAudience
}

// AuthMiddleware validates the JWT token and injects caller metadata into the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), http.StatusText(http.StatusUnauthorized), "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), http.StatusText(http.StatusUnauthorized), "Invalid token format")
			return
		}
		if len(jwtSecret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), "auth is not configured")
			return
		}

		claims := &authClaims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if jwtIssuer != "" {
			opts = append(opts, jwt.WithIssuer(jwtIssuer))
		}
		if jwtAudience != "" {
			opts = append(opts, jwt.WithAudience(jwtAudience))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
			}
			return jwtSecret, nil
		}, opts...)
		if err != nil || !token.Valid {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), http.StatusText(http.StatusUnauthorized), "Invalid token")
			return
		}
		if !validClaims(claims) {
			problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		ctx = context.WithValue(ctx, roleContextKey, claims.Role)
		ctx = context.WithValue(ctx, storeContextKey, claims.StoreID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validClaims(c *authClaims) bool {
	if c.UserID == "" {
		return false
	}
	if c.Subject != "" && c.Subject != c.UserID {
		return false
	}
	switch c.Role {
	case RoleAdmin:
		return true
	case RoleSeller:
		_, err := uuid.Parse(c.StoreID)
		return err == nil
	default:
		return false
	}
}

// RequireRole ensures the authenticated user has the required role.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := UserRoleFromContext(r.Context())
			if role != requiredRole {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), http.StatusText(http.StatusForbidden), "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStoreAccess rejects sellers addressing a store other than their own.
// The store is read from the {storeID} route parameter.
func RequireStoreAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		storeID, err := uuid.Parse(chi.URLParam(r, "storeID"))
		if err != nil {
			problem.WriteWithExtensions(w, r, http.StatusBadRequest, problem.Type("request/invalid-store-id"), http.StatusText(http.StatusBadRequest), "Invalid store ID", map[string]any{"field": "store_id"})
			return
		}
		if !CanAccessStore(r.Context(), storeID) {
			problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), http.StatusText(http.StatusForbidden), "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CanAccessStore reports whether the caller may read or act on storeID.
func CanAccessStore(ctx context.Context, storeID uuid.UUID) bool {
	if UserRoleFromContext(ctx) == RoleAdmin {
		return true
	}
	own, err := uuid.Parse(StoreIDFromContext(ctx))
	return err == nil && own == storeID
}

// UserIDFromContext returns the authenticated user ID.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userContextKey).(string); ok {
		return v
	}
	return ""
}

// UserRoleFromContext returns the role of the authenticated user.
func UserRoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(roleContextKey).(string); ok {
		return v
	}
	return ""
}

// StoreIDFromContext returns the store a seller token is bound to.
func StoreIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(storeContextKey).(string); ok {
		return v
	}
	return ""
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
