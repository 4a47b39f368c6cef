// Package services hosts the background tasks keeping the portfolio
// current: external price refresh and account/book synchronization.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/domain"
)

// PriceSource returns external prices per asset code.
type PriceSource interface {
	Prices(ctx context.Context, codes []string) (map[string]float64, error)
}

// PriceService refreshes global asset prices on two cadences: fast for
// crypto assets, slow for fiat exchange rates. After each refresh every
// native book is repriced so derived values follow the new quote price.
type PriceService struct {
	registry *domain.Registry
	source   PriceSource
	cron     *cron.Cron

	cryptoEvery time.Duration
	fiatEvery   time.Duration

	log zerolog.Logger
}

// NewPriceService creates the refresher. Call Start to begin.
func NewPriceService(registry *domain.Registry, source PriceSource, cryptoEvery, fiatEvery time.Duration, log zerolog.Logger) *PriceService {
	return &PriceService{
		registry:    registry,
		source:      source,
		cron:        cron.New(),
		cryptoEvery: cryptoEvery,
		fiatEvery:   fiatEvery,
		log:         log.With().Str("service", "prices").Logger(),
	}
}

// Start refreshes both classes once, then schedules the recurring jobs.
func (s *PriceService) Start(ctx context.Context) error {
	s.RefreshCrypto(ctx)
	s.RefreshFiat(ctx)

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cryptoEvery), func() {
		s.RefreshCrypto(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule crypto price refresh: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.fiatEvery), func() {
		s.RefreshFiat(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule fiat price refresh: %w", err)
	}

	s.cron.Start()
	s.log.Info().
		Dur("crypto_every", s.cryptoEvery).
		Dur("fiat_every", s.fiatEvery).
		Msg("Price refresh scheduled")
	return nil
}

// Stop halts the schedule and waits for running jobs.
func (s *PriceService) Stop() {
	<-s.cron.Stop().Done()
}

// RefreshCrypto updates globally quoted crypto assets.
func (s *PriceService) RefreshCrypto(ctx context.Context) {
	s.refresh(ctx, domain.TypeCrypto)
}

// RefreshFiat updates fiat exchange rates.
func (s *PriceService) RefreshFiat(ctx context.Context) {
	s.refresh(ctx, domain.TypeFiat)
}

func (s *PriceService) refresh(ctx context.Context, typ domain.AssetType) {
	assets := make([]*domain.Asset, 0)
	codes := make([]string, 0)
	for _, asset := range s.registry.AssetsOfType(typ) {
		if asset.HasGlobalPrice() {
			assets = append(assets, asset)
			codes = append(codes, asset.Code())
		}
	}
	if len(codes) == 0 {
		return
	}

	prices, err := s.source.Prices(ctx, codes)
	if err != nil {
		s.log.Error().Err(err).Str("type", string(typ)).Msg("Price refresh failed")
		return
	}

	updated := 0
	for _, asset := range assets {
		if price, ok := prices[asset.Code()]; ok {
			asset.SetGlobalPrice(price)
			updated++
		}
	}

	// Native ladders derive their reference prices from the quote asset, so
	// every book is recomputed after a price change.
	for _, balance := range s.registry.Balances() {
		if balance.Book != nil {
			balance.Book.RefreshPrices()
		}
	}

	s.log.Debug().Int("updated", updated).Str("type", string(typ)).Msg("Prices refreshed")
}
