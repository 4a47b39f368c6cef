// Command server runs the portfolio rebalancer: it mirrors the configured
// account, keeps order books and global prices current, and serves the
// allocation and rebalancing API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/equilibre/internal/clients/horizon"
	"github.com/aristath/equilibre/internal/clients/marketdata"
	"github.com/aristath/equilibre/internal/config"
	"github.com/aristath/equilibre/internal/database"
	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/allocation"
	"github.com/aristath/equilibre/internal/modules/order"
	"github.com/aristath/equilibre/internal/modules/rebalancing"
	"github.com/aristath/equilibre/internal/reliability"
	"github.com/aristath/equilibre/internal/server"
	"github.com/aristath/equilibre/internal/services"
	"github.com/aristath/equilibre/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("account", cfg.AccountID).Str("currency", cfg.Currency).Msg("Starting equilibre")

	if cfg.AccountID == "" {
		log.Fatal().Msg("EQUILIBRE_ACCOUNT is required")
	}

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolio.db"),
		Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := domain.NewRegistry("XLM", domain.KnownAnchors, log)
	registry.SetMarketDepth(cfg.Rebalance.MarketDepth)

	horizonClient := horizon.New(cfg.HorizonURL, log)
	portfolio := services.NewPortfolioService(registry, horizonClient, cfg.AccountID,
		cfg.Rebalance.BookPollInterval, 200, log)
	go portfolio.Run(ctx)

	var priceService *services.PriceService
	if cfg.MarketDataURL != "" {
		md := marketdata.New(cfg.MarketDataURL, cfg.Currency, log)
		priceService = services.NewPriceService(registry, md,
			cfg.Rebalance.CryptoPriceRefresh, cfg.Rebalance.FiatPriceRefresh, log)
		if err := priceService.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start price refresh")
		}
		defer priceService.Stop()
	} else {
		log.Warn().Msg("MARKET_DATA_URL not set, global prices disabled")
	}

	opLog := rebalancing.NewOperationLog(db)
	svc := rebalancing.NewService(rebalancing.Config{
		Registry:  registry,
		Repo:      allocation.NewRepository(db),
		OpLog:     opLog,
		AccountID: cfg.AccountID,
		Currency:  cfg.Currency,
		Tuning: order.Tuning{
			BalanceTargetDeviation: cfg.Rebalance.BalanceTargetDeviation,
			MinOfferValue:          cfg.Rebalance.MinOfferValue,
			MaxSpread:              cfg.Rebalance.MaxSpread,
			SpreadTightening:       cfg.Rebalance.SpreadTightening,
			SkipMarginalOffers:     cfg.Rebalance.SkipMarginalOffers,
		},
		Log: log,
	})
	if err := svc.LoadTargets(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load allocation targets")
	}

	if cfg.Backup != nil {
		backup, err := reliability.NewBackupService(ctx, db, cfg.DataDir, *cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure backups")
		}
		if err := backup.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start backups")
		}
		defer backup.Stop()
	}

	srv := server.New(cfg, db, registry, svc, opLog, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown incomplete")
	}

	if err := svc.SaveTargets(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to persist allocation targets")
	}

	log.Info().Msg("Stopped")
}
