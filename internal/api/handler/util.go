package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ayo6706/seller-payouts/internal/api/middleware"
	"github.com/ayo6706/seller-payouts/internal/api/problem"
	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	problem.Write(w, r, status, problemURL(problemType), http.StatusText(status), message)
}

func problemURL(problemType string) string {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		return problem.Type(problemType)
	}
	return problemType
}

// RespondServiceError maps a service error onto a problem response. Unknown
// errors are logged under op and reported as 500 without internals.
func RespondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		validationErr   *domain.ValidationError
		insufficientErr *domain.InsufficientBalanceError
		transitionErr   *domain.InvalidStateTransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		ext := map[string]any{"field": validationErr.Field}
		for k, v := range validationErr.Details {
			ext[k] = v
		}
		problem.WriteWithExtensions(w, r, http.StatusBadRequest, problem.Type("request/validation"), http.StatusText(http.StatusBadRequest), validationErr.Error(), ext)
	case errors.As(err, &insufficientErr):
		problem.WriteWithExtensions(w, r, http.StatusUnprocessableEntity, problem.Type("payout/insufficient-balance"), http.StatusText(http.StatusUnprocessableEntity), insufficientErr.Error(), map[string]any{
			"amount_micros":    insufficientErr.Amount,
			"available_micros": insufficientErr.Available,
			"currency":         insufficientErr.Currency,
		})
	case errors.As(err, &transitionErr):
		problem.WriteWithExtensions(w, r, http.StatusConflict, problem.Type("state/invalid-transition"), http.StatusText(http.StatusConflict), transitionErr.Error(), map[string]any{
			"entity": transitionErr.Entity,
			"from":   transitionErr.From,
			"to":     transitionErr.To,
		})
	case errors.Is(err, domain.ErrNotFound):
		RespondError(w, r, http.StatusNotFound, "resource/not-found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
	case errors.Is(err, context.Canceled):
		RespondError(w, r, 499, "request/canceled", "request canceled")
	default:
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error(op+" failed",
			zap.Error(err),
			zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
		)
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", fmt.Sprintf("%s failed", op))
	}
}

// requestActor names the caller for audit records: "admin:<id>" or "seller:<id>".
func requestActor(r *http.Request) (string, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return "", false, errors.New("missing user in auth context")
	}
	role := middleware.UserRoleFromContext(r.Context())
	return role + ":" + userID, role == middleware.RoleAdmin, nil
}

// storeParam reads the {storeID} route parameter. Access was already checked
// by middleware.RequireStoreAccess.
func storeParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("store_id", "must be a UUID")
	}
	return id, nil
}

func uuidParam(r *http.Request, name, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.NewValidationError(field, "must be a UUID")
	}
	return id, nil
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies that may be left empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
