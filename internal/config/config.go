// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for the database and staging files (always absolute)
	Port          int
	LogLevel      string
	DevMode       bool
	AccountID     string // Account whose portfolio is being rebalanced
	Currency      string // Reference display currency (e.g. "USD")
	HorizonURL    string // Venue API base URL for order book fetches
	MarketDataURL string // Market data provider base URL for global prices

	Rebalance RebalanceConfig
	Backup    *BackupConfig
}

// RebalanceConfig holds the rebalancing engine tuning parameters.
// Defaults mirror the values the engine was calibrated with in production.
type RebalanceConfig struct {
	// BalanceTargetDeviation is how far a balance may deviate from its even
	// split of the asset target (fraction, default 0.2 = ±20%).
	BalanceTargetDeviation float64
	// MinOfferValue is the minimum notional value for a rebalancing
	// operation, in reference-asset units.
	MinOfferValue float64
	// MaxSpread is the maximum spread tolerated around the reference price
	// when clamping offer prices (fraction of price).
	MaxSpread float64
	// SpreadTightening is the fraction of the current spread used to shift
	// our price ahead of competing offers.
	SpreadTightening float64
	// SkipMarginalOffers requires a target offer's cumulative base volume to
	// exceed this fraction of the traded amount.
	SkipMarginalOffers float64
	// MarketDepth is the cumulative quote volume used for depth-based
	// market pricing of assets without a global price.
	MarketDepth float64
	// BookPollInterval is how often native order books are re-fetched.
	BookPollInterval time.Duration
	// CryptoPriceRefresh / FiatPriceRefresh are the global price poll cadences.
	CryptoPriceRefresh time.Duration
	FiatPriceRefresh   time.Duration
}

// BackupConfig holds S3-compatible snapshot backup configuration.
// Backups are disabled when nil (no bucket configured).
type BackupConfig struct {
	Endpoint  string // S3-compatible endpoint URL (empty for AWS S3)
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Interval  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("EQUILIBRE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("EQUILIBRE_PORT", 8010),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		AccountID:     getEnv("EQUILIBRE_ACCOUNT", ""),
		Currency:      getEnv("EQUILIBRE_CURRENCY", "USD"),
		HorizonURL:    getEnv("HORIZON_URL", "https://horizon.stellar.org"),
		MarketDataURL: getEnv("MARKET_DATA_URL", ""),
		Rebalance: RebalanceConfig{
			BalanceTargetDeviation: getEnvAsFloat("BALANCE_TARGET_DEVIATION", 0.2),
			MinOfferValue:          getEnvAsFloat("MIN_OFFER_VALUE", 1.0),
			MaxSpread:              getEnvAsFloat("MAX_SPREAD", 0.05),
			SpreadTightening:       getEnvAsFloat("SPREAD_TIGHTENING", 0.01),
			SkipMarginalOffers:     getEnvAsFloat("SKIP_MARGINAL_OFFERS", 0.1),
			MarketDepth:            getEnvAsFloat("MARKET_DEPTH", 50.0),
			BookPollInterval:       getEnvAsDuration("BOOK_POLL_INTERVAL", 15*time.Second),
			CryptoPriceRefresh:     getEnvAsDuration("CRYPTO_PRICE_REFRESH", time.Minute),
			FiatPriceRefresh:       getEnvAsDuration("FIAT_PRICE_REFRESH", time.Hour),
		},
		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Rebalance.BalanceTargetDeviation < 0 || c.Rebalance.BalanceTargetDeviation >= 1 {
		return fmt.Errorf("balance target deviation must be within [0, 1), got %f", c.Rebalance.BalanceTargetDeviation)
	}
	if c.Rebalance.MaxSpread <= 0 {
		return fmt.Errorf("max spread must be positive, got %f", c.Rebalance.MaxSpread)
	}
	if c.Rebalance.MarketDepth <= 0 {
		return fmt.Errorf("market depth must be positive, got %f", c.Rebalance.MarketDepth)
	}
	if c.Rebalance.BookPollInterval <= 0 {
		return fmt.Errorf("book poll interval must be positive, got %s", c.Rebalance.BookPollInterval)
	}
	return nil
}

// loadBackupConfig loads snapshot backup settings. Returns nil (disabled)
// when no bucket is configured.
func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_S3_BUCKET", "")
	if bucket == "" {
		return nil
	}

	return &BackupConfig{
		Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:    getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:    bucket,
		AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
		SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		Interval:  getEnvAsDuration("BACKUP_INTERVAL", 24*time.Hour),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
