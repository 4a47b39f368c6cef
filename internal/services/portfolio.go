package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/clients/horizon"
	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/orderbook"
)

// fiatCodes are the asset codes treated as fiat tokens: always priced by
// exchange rate, never by their own book.
var fiatCodes = map[string]bool{
	"USD": true, "EUR": true, "CNY": true, "GBP": true,
	"JPY": true, "CHF": true, "CAD": true, "AUD": true,
	"EURT": true, "BCNY": true, "XCN": true,
}

// globallyQuotedCryptos are crypto codes with a reliable external quote.
// Everything else is priced from its aggregated book.
var globallyQuotedCryptos = map[string]bool{
	"XLM": true, "USDT": true,
}

// PortfolioService mirrors the on-venue account into the registry and keeps
// one book poller running per anchor balance.
type PortfolioService struct {
	registry *domain.Registry
	client   *horizon.Client

	accountID    string
	pollInterval time.Duration
	bookDepth    int

	mu      sync.Mutex
	polling map[string]bool

	log zerolog.Logger
}

// NewPortfolioService creates the account synchronizer.
func NewPortfolioService(registry *domain.Registry, client *horizon.Client, accountID string, pollInterval time.Duration, bookDepth int, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		registry:     registry,
		client:       client,
		accountID:    accountID,
		pollInterval: pollInterval,
		bookDepth:    bookDepth,
		polling:      map[string]bool{},
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// Sync fetches the account snapshot, updates every balance, and starts a
// book poller for any balance seen for the first time. Pollers stop when
// ctx is cancelled.
func (s *PortfolioService) Sync(ctx context.Context) error {
	lines, err := s.client.Account(ctx, s.accountID)
	if err != nil {
		return fmt.Errorf("portfolio sync failed: %w", err)
	}

	for _, line := range lines {
		amount, buying, selling, err := line.Amounts()
		if err != nil {
			s.log.Warn().Err(err).Str("asset", line.AssetCode).Msg("Skipping unparsable balance")
			continue
		}

		var asset *domain.Asset
		var anchor *domain.Anchor
		if line.Native() {
			asset = s.registry.Native()
			anchor = s.registry.ResolveAnchor(s.accountID)
		} else {
			asset = s.registry.ResolveAsset(line.AssetCode, classify(line.AssetCode), globallyPriced(line.AssetCode))
			anchor = s.registry.ResolveAnchor(line.AssetIssuer)
		}

		balance := s.registry.ResolveBalance(asset, anchor)
		balance.Update(amount, buying, selling)
		s.startPoller(ctx, line, balance)
	}

	s.log.Info().Int("balances", len(lines)).Msg("Account synchronized")
	return nil
}

// Run syncs immediately, then re-syncs on the poll interval until ctx is
// cancelled. Sync failures are logged and retried on the next tick.
func (s *PortfolioService) Run(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.log.Error().Err(err).Msg("Initial account sync failed")
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("Portfolio service stopped")
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("Account sync failed")
			}
		}
	}
}

func (s *PortfolioService) startPoller(ctx context.Context, line horizon.AccountBalance, balance *domain.Balance) {
	if balance.Book == nil {
		return
	}

	key := line.AssetCode + ":" + line.AssetIssuer
	s.mu.Lock()
	if s.polling[key] {
		s.mu.Unlock()
		return
	}
	s.polling[key] = true
	s.mu.Unlock()

	source := s.client.Source(line.AssetCode, line.AssetIssuer, s.bookDepth)
	poller := orderbook.NewPoller(balance.Book, source, s.pollInterval, s.log)
	go poller.Run(ctx)
}

func classify(code string) domain.AssetType {
	if fiatCodes[code] {
		return domain.TypeFiat
	}
	return domain.TypeCrypto
}

func globallyPriced(code string) bool {
	return fiatCodes[code] || globallyQuotedCryptos[code]
}
