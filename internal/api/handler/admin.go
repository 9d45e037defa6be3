package handler

import (
	"net/http"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/service"
	"github.com/ayo6706/seller-payouts/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminHandler exposes operator-only ledger corrections and job triggers.
type AdminHandler struct {
	ledger     *service.LedgerService
	settlement *service.SettlementService
}

func NewAdminHandler(ledger *service.LedgerService, settlement *service.SettlementService) *AdminHandler {
	return &AdminHandler{ledger: ledger, settlement: settlement}
}

// CreateAdjustmentRequest is a manual correction posted by an operator. The
// reference makes a resubmitted correction a no-op.
type CreateAdjustmentRequest struct {
	Type         string `json:"type" validate:"omitempty,oneof=manual_adjustment fee_adjustment shipping_label"`
	Currency     string `json:"currency" validate:"required"`
	AmountMicros int64  `json:"amount_micros" validate:"ne=0"`
	Reference    string `json:"reference" validate:"required,max=200"`
	OrderID      string `json:"order_id" validate:"omitempty,uuid"`
	Description  string `json:"description" validate:"max=500"`
}

// CreateAdjustment handles POST /v1/stores/{storeID}/adjustments.
func (h *AdminHandler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "create adjustment", err)
		return
	}
	var req CreateAdjustmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondServiceError(w, r, "create adjustment", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		RespondServiceError(w, r, "create adjustment", err)
		return
	}

	in := service.AppendEntryInput{
		StoreID:      storeID,
		Currency:     req.Currency,
		Type:         domain.EntryManualAdjustment,
		AmountMicros: req.AmountMicros,
		ExternalRef:  "admin:" + req.Reference,
		Description:  req.Description,
	}
	if req.Type != "" {
		in.Type = domain.EntryType(req.Type)
	}
	if req.OrderID != "" {
		orderID := uuid.MustParse(req.OrderID)
		in.OrderID = &orderID
	}

	entry, err := h.ledger.Append(r.Context(), in)
	if err != nil {
		RespondServiceError(w, r, "create adjustment", err)
		return
	}
	zap.L().Info("manual ledger adjustment",
		zap.String("actor", actor),
		zap.String("store_id", storeID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("type", string(entry.Type)),
		zap.Int64("amount_micros", entry.AmountMicros),
	)
	RespondJSON(w, http.StatusCreated, entry)
}

// RunSettlement handles POST /v1/admin/settlement/run. It performs one
// reconciler pass synchronously and returns its report. Pairs that failed are
// counted in the report and summarised under "error".
func (h *AdminHandler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	report, err := h.settlement.Run(r.Context(), time.Now().UTC())
	if err != nil {
		zap.L().Warn("manual settlement run finished with errors", zap.Error(err))
		RespondJSON(w, http.StatusOK, map[string]any{
			"report": report,
			"error":  err.Error(),
		})
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"report": report})
}
