package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/seller-payouts/internal/service"
	"go.uber.org/zap"
)

const signatureHeader = "X-Webhook-Signature"

// WebhookHandler handles incoming webhook events from checkout and the
// payment processor.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler instance.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookSvc: webhookSvc,
	}
}

// HandleSettlement handles POST /v1/webhooks/settlements.
func (h *WebhookHandler) HandleSettlement(w http.ResponseWriter, r *http.Request) {
	body, ok := readWebhookBody(w, r)
	if !ok {
		return
	}
	entries, err := h.webhookSvc.HandleSettlement(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		respondWebhookError(w, r, "settlement webhook", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleProcessorEvent handles POST /v1/webhooks/processor.
func (h *WebhookHandler) HandleProcessorEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := readWebhookBody(w, r)
	if !ok {
		return
	}
	result, err := h.webhookSvc.HandleProcessorEvent(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		respondWebhookError(w, r, "processor webhook", err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return nil, false
	}
	return body, true
}

func respondWebhookError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, service.ErrInvalidSignature) {
		zap.L().Warn("webhook signature rejected", zap.String("path", r.URL.Path))
		RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
		return
	}
	RespondServiceError(w, r, op, err)
}
