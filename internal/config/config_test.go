package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("WEBHOOK_HMAC_KEY", "whsec")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, []string{"EUR", "NPR", "USD"}, cfg.SupportedCurrencies)
	assert.Equal(t, 7, cfg.HoldPeriodDays)
	assert.Equal(t, 7*24*time.Hour, cfg.HoldPeriod())
	assert.Equal(t, 2*time.Minute, cfg.StalePayoutWindow)
	assert.Equal(t, int32(10), cfg.PayoutBatchSize)
	assert.Equal(t, 4, cfg.SettlementConcurrency)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Empty(t, cfg.ManualRailCurrencies)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoadPrefixedOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SELLER_SUPPORTED_CURRENCIES", "eur, npr ,eur")
	t.Setenv("SELLER_MANUAL_RAIL_CURRENCIES", "NPR")
	t.Setenv("HOLD_PERIOD_DAYS", "3")
	t.Setenv("SETTLEMENT_INTERVAL", "30s")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR", "NPR"}, cfg.SupportedCurrencies)
	assert.Equal(t, []string{"NPR"}, cfg.ManualRailCurrencies)
	assert.Equal(t, 3, cfg.HoldPeriodDays)
	assert.Equal(t, 30*time.Second, cfg.SettlementInterval)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "short secret", env: map[string]string{"JWT_SECRET": "short"}, want: "JWT_SECRET must be at least 32 characters"},
		{name: "missing webhook key", env: map[string]string{"WEBHOOK_HMAC_KEY": ""}, want: "WEBHOOK_HMAC_KEY is required"},
		{name: "bad duration", env: map[string]string{"PAYOUT_POLL_INTERVAL": "soon"}, want: "invalid PAYOUT_POLL_INTERVAL"},
		{name: "manual rail outside supported", env: map[string]string{"MANUAL_RAIL_CURRENCIES": "GBP"}, want: "unsupported currency GBP"},
		{name: "negative hold", env: map[string]string{"HOLD_PERIOD_DAYS": "-1"}, want: "HOLD_PERIOD_DAYS"},
		{name: "pool smaller than settlement fan-out", env: map[string]string{"DB_MAX_CONNS": "4", "SETTLEMENT_CONCURRENCY": "4"}, want: "DB_MAX_CONNS must exceed"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
