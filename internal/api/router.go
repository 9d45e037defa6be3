package api

import (
	"net/http"

	"github.com/ayo6706/seller-payouts/internal/api/handler"
	"github.com/ayo6706/seller-payouts/internal/api/middleware"
	"github.com/ayo6706/seller-payouts/internal/api/spec"
	"github.com/ayo6706/seller-payouts/internal/config"
	"github.com/ayo6706/seller-payouts/internal/idempotency"
	"github.com/ayo6706/seller-payouts/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services bundles the domain services the HTTP layer exposes.
type Services struct {
	Ledger     *service.LedgerService
	Wallet     *service.WalletService
	Settings   *service.PayoutSettingsService
	Payouts    *service.PayoutService
	Settlement *service.SettlementService
	Webhooks   *service.WebhookService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	idemStore *idempotency.Store
	redis     redis.Cmdable
	svc       Services
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, idemStore *idempotency.Store, redisClient redis.Cmdable, svc Services) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		idemStore: idemStore,
		redis:     redisClient,
		svc:       svc,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	walletHandler := handler.NewWalletHandler(api.svc.Wallet, api.svc.Ledger)
	settingsHandler := handler.NewPayoutSettingsHandler(api.svc.Settings)
	payoutHandler := handler.NewPayoutHandler(api.svc.Payouts)
	adminHandler := handler.NewAdminHandler(api.svc.Ledger, api.svc.Settlement)
	webhookHandler := handler.NewWebhookHandler(api.svc.Webhooks)

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

		// Webhooks authenticate by HMAC signature instead of JWT.
		r.Post("/v1/webhooks/settlements", webhookHandler.HandleSettlement)
		r.Post("/v1/webhooks/processor", webhookHandler.HandleProcessorEvent)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Route("/v1/stores/{storeID}", func(r chi.Router) {
			r.Use(middleware.RequireStoreAccess)

			r.Get("/wallet", walletHandler.GetWallet)
			r.Get("/activity", walletHandler.ListActivity)
			r.Get("/activity/export", walletHandler.ExportActivity)

			r.Get("/payout-settings", settingsHandler.Get)
			r.Put("/payout-settings", settingsHandler.Update)

			r.Get("/payouts", payoutHandler.ListPayouts)
			r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).Post("/payouts", payoutHandler.CreatePayout)

			r.With(middleware.RequireRole(middleware.RoleAdmin)).Post("/adjustments", adminHandler.CreateAdjustment)
		})

		r.Route("/v1/payouts/{id}", func(r chi.Router) {
			r.Get("/", payoutHandler.GetPayout)
			r.Get("/history", payoutHandler.GetPayoutHistory)
			r.Post("/cancel", payoutHandler.CancelPayout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(middleware.RoleAdmin))
				r.Post("/process", payoutHandler.ProcessPayout)
				r.Post("/confirm", payoutHandler.ConfirmPayout)
				r.Post("/reject", payoutHandler.RejectPayout)
			})
		})

		r.With(middleware.RequireRole(middleware.RoleAdmin)).Post("/v1/admin/settlement/run", adminHandler.RunSettlement)
	})

	return r
}
