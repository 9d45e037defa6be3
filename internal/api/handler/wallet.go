package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/pagination"
	"github.com/ayo6706/seller-payouts/internal/service"
	"go.uber.org/zap"
)

const exportFlushEvery = 500

var exportHeader = []string{
	"created_at", "entry_id", "type", "status", "currency", "amount",
	"amount_micros", "balance_after_micros", "available_at",
	"order_id", "payout_id", "external_ref", "description",
}

// WalletHandler serves the seller's balances and ledger activity.
type WalletHandler struct {
	wallet *service.WalletService
	ledger *service.LedgerService
}

func NewWalletHandler(wallet *service.WalletService, ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{wallet: wallet, ledger: ledger}
}

// GetWallet handles GET /v1/stores/{storeID}/wallet.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "get wallet", err)
		return
	}
	wallets, err := h.wallet.GetWalletSummary(r.Context(), storeID)
	if err != nil {
		RespondServiceError(w, r, "get wallet", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"store_id": storeID,
		"wallets":  wallets,
	})
}

// ListActivity handles GET /v1/stores/{storeID}/activity.
func (h *WalletHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "list activity", err)
		return
	}
	filter, err := parseActivityFilter(r)
	if err != nil {
		RespondServiceError(w, r, "list activity", err)
		return
	}
	page := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			RespondServiceError(w, r, "list activity", domain.NewValidationError("limit", "must be a positive integer"))
			return
		}
		page.Limit = limit
	}

	out, err := h.ledger.List(r.Context(), storeID, filter, page)
	if err != nil {
		RespondServiceError(w, r, "list activity", err)
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

// ExportActivity handles GET /v1/stores/{storeID}/activity/export. Rows are
// streamed as CSV and flushed in batches, so large statements never sit in
// memory. Errors after the first row can only truncate the response.
func (h *WalletHandler) ExportActivity(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeParam(r)
	if err != nil {
		RespondServiceError(w, r, "export activity", err)
		return
	}
	filter, err := parseActivityFilter(r)
	if err != nil {
		RespondServiceError(w, r, "export activity", err)
		return
	}

	out := &statementWriter{
		w:        w,
		csv:      csv.NewWriter(w),
		filename: fmt.Sprintf("statement-%s-%s.csv", storeID, time.Now().UTC().Format("20060102")),
	}
	out.flusher, _ = w.(http.Flusher)

	err = h.ledger.Export(r.Context(), storeID, filter, out.writeEntry)
	if err != nil && !out.started {
		RespondServiceError(w, r, "export activity", err)
		return
	}
	if err != nil {
		zap.L().Error("statement export aborted",
			zap.Error(err),
			zap.String("store_id", storeID.String()),
			zap.Int("rows", out.rows),
		)
		return
	}
	if err := out.finish(); err != nil {
		zap.L().Warn("statement export flush failed", zap.Error(err), zap.String("store_id", storeID.String()))
	}
}

type statementWriter struct {
	w        http.ResponseWriter
	csv      *csv.Writer
	flusher  http.Flusher
	filename string
	started  bool
	rows     int
}

func (s *statementWriter) start() error {
	s.started = true
	s.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	s.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
	s.w.WriteHeader(http.StatusOK)
	return s.csv.Write(exportHeader)
}

func (s *statementWriter) writeEntry(e models.LedgerEntry) error {
	if !s.started {
		if err := s.start(); err != nil {
			return err
		}
	}
	if err := s.csv.Write(statementRow(e)); err != nil {
		return err
	}
	s.rows++
	if s.rows%exportFlushEvery == 0 {
		s.csv.Flush()
		if err := s.csv.Error(); err != nil {
			return err
		}
		if s.flusher != nil {
			s.flusher.Flush()
		}
	}
	return nil
}

func (s *statementWriter) finish() error {
	if !s.started {
		if err := s.start(); err != nil {
			return err
		}
	}
	s.csv.Flush()
	return s.csv.Error()
}

func statementRow(e models.LedgerEntry) []string {
	optional := func(v fmt.Stringer, ok bool) string {
		if !ok {
			return ""
		}
		return v.String()
	}
	return []string{
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.ID.String(),
		string(e.Type),
		string(e.Status),
		e.Currency,
		domain.NewMoney(e.AmountMicros, e.Currency).ToDecimal().StringFixed(2),
		strconv.FormatInt(e.AmountMicros, 10),
		strconv.FormatInt(e.BalanceAfterMicros, 10),
		e.AvailableAt.UTC().Format(time.RFC3339),
		optional(e.OrderID, e.OrderID != nil),
		optional(e.PayoutID, e.PayoutID != nil),
		e.ExternalRef,
		e.Description,
	}
}

// parseActivityFilter reads type, currency, status, from, to and q. type may
// repeat or hold a comma separated list. from and to accept RFC 3339 or a
// plain date; a plain to date covers the whole day.
func parseActivityFilter(r *http.Request) (service.ActivityFilter, error) {
	q := r.URL.Query()
	filter := service.ActivityFilter{
		Currency: strings.TrimSpace(q.Get("currency")),
		Query:    strings.TrimSpace(q.Get("q")),
	}
	for _, raw := range q["type"] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			t, err := domain.ParseEntryType(v)
			if err != nil {
				return filter, err
			}
			filter.Types = append(filter.Types, t)
		}
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status, err := domain.ParseEntryStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	from, err := parseTimeParam(q.Get("from"), "from", false)
	if err != nil {
		return filter, err
	}
	to, err := parseTimeParam(q.Get("to"), "to", true)
	if err != nil {
		return filter, err
	}
	filter.From, filter.To = from, to
	return filter, nil
}

func parseTimeParam(raw, field string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, domain.NewValidationError(field, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return &d, nil
}
