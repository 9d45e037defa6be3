package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/seller-payouts/internal/api"
	"github.com/ayo6706/seller-payouts/internal/api/middleware"
	"github.com/ayo6706/seller-payouts/internal/config"
	"github.com/ayo6706/seller-payouts/internal/db"
	"github.com/ayo6706/seller-payouts/internal/gateway"
	"github.com/ayo6706/seller-payouts/internal/idempotency"
	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/ayo6706/seller-payouts/internal/service"
	"github.com/ayo6706/seller-payouts/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database migrations applied")
	}

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewStore(pool)
	idemStore := idempotency.NewStore(redisClient, repository.New(pool), cfg.IdempotencyTTL)
	rails := newRailRegistry(cfg)

	ledgerSvc := service.NewLedgerService(store, repository.NewRepository(pool), cfg.SupportedCurrencies, cfg.HoldPeriod())
	settingsSvc := service.NewPayoutSettingsService(store, cfg.HoldPeriodDays)
	walletSvc := service.NewWalletService(store, rails, settingsSvc)
	payoutSvc := service.NewPayoutService(store, rails, ledgerSvc, settingsSvc, cfg.SupportedCurrencies, cfg.StalePayoutWindow)
	settlementSvc := service.NewSettlementService(store, ledgerSvc, rails, cfg.SettlementConcurrency, cfg.AdjustmentLookback)
	webhookSvc := service.NewWebhookService(ledgerSvc, settlementSvc, cfg.WebhookHMACKey, cfg.WebhookSkipSignature)
	reconciliationSvc := service.NewReconciliationService(store)

	payoutWorker := worker.NewPayoutWorker(payoutSvc)
	payoutWorker.WithPollInterval(cfg.PayoutPollInterval)
	payoutWorker.WithBatchSize(cfg.PayoutBatchSize)

	stops := []func(){
		payoutWorker.Run(ctx),
		worker.NewSettlementWorker(settlementSvc, redisClient, cfg.SettlementInterval).Run(ctx),
		worker.NewAutoPayoutWorker(payoutSvc, redisClient, cfg.AutoPayoutInterval).Run(ctx),
		worker.NewReconciliationWorker(reconciliationSvc, redisClient).WithInterval(cfg.ReconciliationInterval).Run(ctx),
		worker.NewIdempotencyPurgeWorker(idemStore, redisClient, time.Hour).Run(ctx),
	}
	logger.Info("workers started",
		zap.Duration("payout_interval", cfg.PayoutPollInterval),
		zap.Int32("payout_batch", cfg.PayoutBatchSize),
		zap.Duration("settlement_interval", cfg.SettlementInterval),
		zap.Duration("auto_payout_interval", cfg.AutoPayoutInterval),
		zap.Duration("reconciliation_interval", cfg.ReconciliationInterval),
	)

	router := api.NewRouter(cfg, logger, pool, idemStore, redisClient, api.Services{
		Ledger:     ledgerSvc,
		Wallet:     walletSvc,
		Settings:   settingsSvc,
		Payouts:    payoutSvc,
		Settlement: settlementSvc,
		Webhooks:   webhookSvc,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	for _, stop := range stops {
		stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newRailRegistry routes manual-rail currencies to the operator queue and
// everything else to the HTTP rail, or the mock rail when none is configured.
func newRailRegistry(cfg *config.Config) *gateway.Registry {
	var fallback gateway.Rail = gateway.NewMockRail()
	if cfg.PayoutRailURL != "" {
		fallback = gateway.NewHTTPRail(gateway.HTTPRailConfig{
			BaseURL: cfg.PayoutRailURL,
			APIKey:  cfg.PayoutRailAPIKey,
			RPS:     cfg.PayoutRailRPS,
		})
	} else {
		zap.L().Warn("PAYOUT_RAIL_URL not set; programmatic payouts use the mock rail")
	}
	registry := gateway.NewRegistry(fallback)
	manual := gateway.NewManualRail()
	for _, currency := range cfg.ManualRailCurrencies {
		registry.Register(currency, manual)
	}
	return registry
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
