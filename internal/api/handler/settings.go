package handler

import (
	"net/http"

	"github.com/ayo6706/seller-payouts/internal/service"
)

// PayoutSettingsHandler reads and updates a store's payout preferences.
type PayoutSettingsHandler struct {
	settings *service.PayoutSettingsService
}

func NewPayoutSettingsHandler(settings *service.PayoutSettingsService) *PayoutSettingsHandler {
	return &PayoutSettingsHandler{settings: settings}
}

// Get handles GET /v1/stores/{storeID}/payout-settings.
func (h *PayoutSettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "get payout settings", err)
		return
	}
	settings, err := h.settings.Get(r.Context(), storeID)
	if err != nil {
		RespondServiceError(w, r, "get payout settings", err)
		return
	}
	RespondJSON(w, http.StatusOK, settings)
}

// Update handles PUT /v1/stores/{storeID}/payout-settings.
func (h *PayoutSettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "update payout settings", err)
		return
	}
	var req service.UpdatePayoutSettingsInput
	if err := decodeJSON(w, r, &req); err != nil {
		RespondServiceError(w, r, "update payout settings", err)
		return
	}
	settings, err := h.settings.Update(r.Context(), storeID, req)
	if err != nil {
		RespondServiceError(w, r, "update payout settings", err)
		return
	}
	RespondJSON(w, http.StatusOK, settings)
}
