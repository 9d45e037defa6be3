package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/seller-payouts/internal/api/middleware"
	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/service"
)

// PayoutHandler handles HTTP requests for payouts.
type PayoutHandler struct {
	payoutSvc *service.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler instance.
func NewPayoutHandler(payoutSvc *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// CreatePayoutRequest is the body of a payout request. Either amount_micros or
// a decimal amount string is accepted.
type CreatePayoutRequest struct {
	AmountMicros int64  `json:"amount_micros"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

// CreatePayout handles POST /v1/stores/{storeID}/payouts.
// The Idempotency-Key doubles as the payout reference, so a retried request
// returns the payout it created.
func (h *PayoutHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		RespondError(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	}
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "create payout", err)
		return
	}

	var req CreatePayoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondServiceError(w, r, "create payout", err)
		return
	}
	amount := req.AmountMicros
	if req.Amount != "" {
		if amount != 0 {
			RespondServiceError(w, r, "create payout", domain.NewValidationError("amount", "send either amount or amount_micros"))
			return
		}
		if amount, err = domain.ParseAmount(req.Amount); err != nil {
			RespondServiceError(w, r, "create payout", err)
			return
		}
	}

	payout, err := h.payoutSvc.RequestPayout(r.Context(), service.RequestPayoutInput{
		StoreID:      storeID,
		AmountMicros: amount,
		Currency:     req.Currency,
		ReferenceID:  idempotencyKey,
		RequestedBy:  actor,
	})
	if err != nil {
		RespondServiceError(w, r, "create payout", err)
		return
	}
	RespondJSON(w, http.StatusAccepted, payout)
}

// ListPayouts handles GET /v1/stores/{storeID}/payouts.
func (h *PayoutHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "list payouts", err)
		return
	}
	limit := int32(50)
	offset := int32(0)
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-limit", "limit must be a positive integer")
			return
		}
		limit = int32(min(parsed, 500))
	}
	if v := strings.TrimSpace(r.URL.Query().Get("offset")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-offset", "offset must be a non-negative integer")
			return
		}
		offset = int32(parsed)
	}

	payouts, err := h.payoutSvc.ListPayouts(r.Context(), storeID, limit, offset)
	if err != nil {
		RespondServiceError(w, r, "list payouts", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  payouts,
		"limit":  limit,
		"offset": offset,
		"count":  len(payouts),
	})
}

// GetPayout handles GET /v1/payouts/{id}.
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	payout, ok := h.loadOwnedPayout(w, r, "get payout")
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, payout)
}

// GetPayoutHistory handles GET /v1/payouts/{id}/history.
func (h *PayoutHandler) GetPayoutHistory(w http.ResponseWriter, r *http.Request) {
	payout, ok := h.loadOwnedPayout(w, r, "get payout history")
	if !ok {
		return
	}
	history, err := h.payoutSvc.History(r.Context(), payout.ID)
	if err != nil {
		RespondServiceError(w, r, "get payout history", err)
		return
	}
	type event struct {
		Action    string  `json:"action"`
		Actor     *string `json:"actor,omitempty"`
		PrevState *string `json:"prev_state,omitempty"`
		NextState *string `json:"next_state,omitempty"`
		At        string  `json:"at"`
	}
	out := make([]event, 0, len(history))
	for _, h := range history {
		out = append(out, event{
			Action:    h.Action,
			Actor:     h.Actor,
			PrevState: h.PrevState,
			NextState: h.NextState,
			At:        h.CreatedAt.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	RespondJSON(w, http.StatusOK, map[string]any{"payout_id": payout.ID, "events": out})
}

// CancelPayout handles POST /v1/payouts/{id}/cancel. Only pending payouts
// can be canceled; the reservation is released.
func (h *PayoutHandler) CancelPayout(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	payout, ok := h.loadOwnedPayout(w, r, "cancel payout")
	if !ok {
		return
	}
	payout, err = h.payoutSvc.CancelPayout(r.Context(), payout.ID, actor)
	if err != nil {
		RespondServiceError(w, r, "cancel payout", err)
		return
	}
	RespondJSON(w, http.StatusOK, payout)
}

// ProcessPayout handles POST /v1/payouts/{id}/process (admin only). It drives
// one pending payout through its rail immediately instead of waiting for the
// worker. A rail rejection is not an error here: the payout comes back failed.
func (h *PayoutHandler) ProcessPayout(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuidParam(r, "id", "payout_id")
	if err != nil {
		RespondServiceError(w, r, "process payout", err)
		return
	}
	payout, err := h.payoutSvc.ProcessPayout(r.Context(), payoutID)
	if err != nil {
		RespondServiceError(w, r, "process payout", err)
		return
	}
	RespondJSON(w, http.StatusOK, payout)
}

type confirmPayoutRequest struct {
	ExternalRef string `json:"external_ref"`
}

// ConfirmPayout handles POST /v1/payouts/{id}/confirm (admin only) for payouts
// the operator sent off-platform.
func (h *PayoutHandler) ConfirmPayout(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	payoutID, err := uuidParam(r, "id", "payout_id")
	if err != nil {
		RespondServiceError(w, r, "confirm payout", err)
		return
	}
	var req confirmPayoutRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		RespondServiceError(w, r, "confirm payout", err)
		return
	}
	payout, err := h.payoutSvc.ConfirmManualPayout(r.Context(), payoutID, actor, req.ExternalRef)
	if err != nil {
		RespondServiceError(w, r, "confirm payout", err)
		return
	}
	RespondJSON(w, http.StatusOK, payout)
}

type rejectPayoutRequest struct {
	Reason string `json:"reason"`
}

// RejectPayout handles POST /v1/payouts/{id}/reject (admin only).
func (h *PayoutHandler) RejectPayout(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	payoutID, err := uuidParam(r, "id", "payout_id")
	if err != nil {
		RespondServiceError(w, r, "reject payout", err)
		return
	}
	var req rejectPayoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondServiceError(w, r, "reject payout", err)
		return
	}
	payout, err := h.payoutSvc.RejectManualPayout(r.Context(), payoutID, actor, req.Reason)
	if err != nil {
		RespondServiceError(w, r, "reject payout", err)
		return
	}
	RespondJSON(w, http.StatusOK, payout)
}

// loadOwnedPayout fetches the {id} payout and hides it from sellers of other
// stores behind a 404.
func (h *PayoutHandler) loadOwnedPayout(w http.ResponseWriter, r *http.Request, op string) (models.Payout, bool) {
	payoutID, err := uuidParam(r, "id", "payout_id")
	if err != nil {
		RespondServiceError(w, r, op, err)
		return models.Payout{}, false
	}
	payout, err := h.payoutSvc.GetPayout(r.Context(), payoutID)
	if err != nil {
		RespondServiceError(w, r, op, err)
		return models.Payout{}, false
	}
	if !middleware.CanAccessStore(r.Context(), payout.StoreID) {
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "payout "+payoutID.String()+": not found")
		return models.Payout{}, false
	}
	return payout, true
}
