package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPRail talks to a payout provider over JSON/HTTP. It supports transfers,
// balance inspection and the adjustment feed.
type HTTPRail struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

type HTTPRailConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	RPS     float64
	Timeout time.Duration
}

func NewHTTPRail(cfg HTTPRailConfig) *HTTPRail {
	name := cfg.Name
	if name == "" {
		name = "http"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		burst = int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
	}
	return &HTTPRail{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *HTTPRail) Name() string { return r.name }

func (r *HTTPRail) Kind() string { return domain.RailKindProgrammatic }

type transferBody struct {
	IdempotencyKey string `json:"idempotency_key"`
	StoreID        string `json:"store_id"`
	AmountMicros   int64  `json:"amount_micros"`
	Currency       string `json:"currency"`
}

type transferResponse struct {
	Reference string `json:"reference"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *HTTPRail) InitiateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	body, err := json.Marshal(transferBody{
		IdempotencyKey: req.IdempotencyKey,
		StoreID:        req.StoreID.String(),
		AmountMicros:   req.AmountMicros,
		Currency:       req.Currency,
	})
	if err != nil {
		return "", fmt.Errorf("encode transfer: %w", err)
	}

	var out transferResponse
	if err := r.do(ctx, http.MethodPost, "/transfers", body, req.IdempotencyKey, &out); err != nil {
		observability.IncrementRailRequest(r.name, "transfer", outcome(err))
		return "", err
	}
	observability.IncrementRailRequest(r.name, "transfer", "ok")
	if out.Reference == "" {
		return "", fmt.Errorf("rail %s returned empty transfer reference", r.name)
	}
	return out.Reference, nil
}

type balanceResponse struct {
	AvailableMicros int64 `json:"available_micros"`
}

func (r *HTTPRail) AvailableBalance(ctx context.Context, storeID uuid.UUID, currency string) (int64, error) {
	path := fmt.Sprintf("/balances/%s?currency=%s", url.PathEscape(storeID.String()), url.QueryEscape(currency))
	var out balanceResponse
	if err := r.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		observability.IncrementRailRequest(r.name, "balance", outcome(err))
		return 0, err
	}
	observability.IncrementRailRequest(r.name, "balance", "ok")
	return out.AvailableMicros, nil
}

type railAdjustment struct {
	ID           string  `json:"id"`
	StoreID      string  `json:"store_id"`
	Currency     string  `json:"currency"`
	AmountMicros int64   `json:"amount_micros"`
	OrderID      *string `json:"order_id"`
	Description  string  `json:"description"`
}

type adjustmentsResponse struct {
	Adjustments []railAdjustment `json:"adjustments"`
}

// Adjustments fetches the rail's adjustment feed. Records with unparseable
// identifiers are logged and skipped so the rest of the feed still applies.
func (r *HTTPRail) Adjustments(ctx context.Context, since time.Time) ([]Adjustment, error) {
	path := "/adjustments?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	var out adjustmentsResponse
	if err := r.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		observability.IncrementRailRequest(r.name, "adjustments", outcome(err))
		return nil, err
	}
	observability.IncrementRailRequest(r.name, "adjustments", "ok")

	adjustments := make([]Adjustment, 0, len(out.Adjustments))
	for _, a := range out.Adjustments {
		adj, err := a.toAdjustment()
		if err != nil {
			observability.IncrementRailRequest(r.name, "adjustments", "invalid_record")
			zap.L().Warn("skipping malformed rail adjustment",
				zap.String("rail", r.name),
				zap.String("external_id", a.ID),
				zap.Error(err),
			)
			continue
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, nil
}

func (a railAdjustment) toAdjustment() (Adjustment, error) {
	storeID, err := uuid.Parse(a.StoreID)
	if err != nil {
		return Adjustment{}, fmt.Errorf("invalid store_id: %w", err)
	}
	adj := Adjustment{
		ExternalID:   a.ID,
		StoreID:      storeID,
		Currency:     a.Currency,
		AmountMicros: a.AmountMicros,
		Description:  a.Description,
	}
	if a.OrderID != nil {
		orderID, err := uuid.Parse(*a.OrderID)
		if err != nil {
			return Adjustment{}, fmt.Errorf("invalid order_id: %w", err)
		}
		adj.OrderID = &orderID
	}
	return adj, nil
}

func (r *HTTPRail) do(ctx context.Context, method, path string, body []byte, idempotencyKey string, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rail %s rate limit wait: %w", r.name, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build rail request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("rail %s %s %s: %w", r.name, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read rail response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		var e errorResponse
		_ = json.Unmarshal(payload, &e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &RejectionError{Code: e.Code, Reason: e.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rail %s %s %s: unexpected status %d", r.name, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode rail response: %w", err)
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrRejected) {
		return "rejected"
	}
	return "error"
}
