package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EQUILIBRE_DATA_DIR", filepath.Join(t.TempDir(), "data"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 0.2, cfg.Rebalance.BalanceTargetDeviation)
	assert.Equal(t, 1.0, cfg.Rebalance.MinOfferValue)
	assert.Equal(t, 0.05, cfg.Rebalance.MaxSpread)
	assert.Equal(t, 0.01, cfg.Rebalance.SpreadTightening)
	assert.Equal(t, 0.1, cfg.Rebalance.SkipMarginalOffers)
	assert.Equal(t, 50.0, cfg.Rebalance.MarketDepth)
	assert.Equal(t, 15*time.Second, cfg.Rebalance.BookPollInterval)
	assert.Equal(t, time.Minute, cfg.Rebalance.CryptoPriceRefresh)
	assert.Equal(t, time.Hour, cfg.Rebalance.FiatPriceRefresh)
	assert.Nil(t, cfg.Backup, "backups disabled without a bucket")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EQUILIBRE_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	t.Setenv("EQUILIBRE_PORT", "9000")
	t.Setenv("EQUILIBRE_CURRENCY", "EUR")
	t.Setenv("BALANCE_TARGET_DEVIATION", "0.3")
	t.Setenv("BOOK_POLL_INTERVAL", "30s")
	t.Setenv("BACKUP_S3_BUCKET", "snapshots")
	t.Setenv("BACKUP_INTERVAL", "12h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, 0.3, cfg.Rebalance.BalanceTargetDeviation)
	assert.Equal(t, 30*time.Second, cfg.Rebalance.BookPollInterval)
	require.NotNil(t, cfg.Backup)
	assert.Equal(t, "snapshots", cfg.Backup.Bucket)
	assert.Equal(t, 12*time.Hour, cfg.Backup.Interval)
}

func TestValidateRejectsBadMarketDepth(t *testing.T) {
	t.Setenv("EQUILIBRE_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	t.Setenv("MARKET_DEPTH", "-10")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market depth")
}

func TestValidateRejectsBadDeviation(t *testing.T) {
	t.Setenv("EQUILIBRE_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	t.Setenv("BALANCE_TARGET_DEVIATION", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deviation")
}
