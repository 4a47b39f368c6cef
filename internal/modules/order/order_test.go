package order

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/orderbook"
)

type stubTarget struct {
	asset      *domain.Asset
	amount     float64
	resolved   bool
	delta      float64
	amountMode bool
}

func (s *stubTarget) Asset() *domain.Asset            { return s.asset }
func (s *stubTarget) ResolvedAmount() (float64, bool) { return s.amount, s.resolved }
func (s *stubTarget) AmountDelta() float64            { return s.delta }
func (s *stubTarget) AmountDenominated() bool         { return s.amountMode }

// newFixture builds a BTC asset with one balance per anchor, each holding
// held[i] and backed by a native book deep enough to be priceable.
func newFixture(t *testing.T, held ...float64) (*domain.Registry, *domain.Asset, []*domain.Balance) {
	t.Helper()

	r := domain.NewRegistry("XLM", nil, zerolog.Nop())
	r.Native().SetGlobalPrice(1.0)

	btc := r.ResolveAsset("BTC", domain.TypeCrypto, false)
	balances := make([]*domain.Balance, len(held))
	for i, amount := range held {
		anchor := r.ResolveAnchor("GANCHOR" + string(rune('A'+i)))
		balances[i] = r.ResolveBalance(btc, anchor)
		balances[i].Update(amount, 0, 0)
		balances[i].Book.Ingest(orderbook.RawBook{
			// Quote amount 100 at the top bid clears the market depth.
			Bids: []orderbook.RawOffer{{Price: 10, Amount: 100}, {Price: 9, Amount: 90}},
			Asks: []orderbook.RawOffer{{Price: 12, Amount: 20}, {Price: 13, Amount: 20}},
		})
	}
	return r, btc, balances
}

func TestMarketOrderTakesAsks(t *testing.T) {
	_, btc, _ := newFixture(t, 5)

	o := NewMarket(btc.Book, 2, DefaultTuning(), zerolog.Nop())

	ops := o.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, 2.0, ops[0].Amount)
	assert.Equal(t, orderbook.SideAsks, ops[0].Offer.Side)
	// First ask whose cumulative base volume exceeds the traded amount.
	assert.Equal(t, 12.0, ops[0].Offer.BasePrice)
	assert.InDelta(t, 24.0, ops[0].Cost, 1e-9)
}

func TestMarketOrderZeroSizeIsEmpty(t *testing.T) {
	_, btc, _ := newFixture(t, 5)
	o := NewMarket(btc.Book, 0, DefaultTuning(), zerolog.Nop())
	assert.Empty(t, o.Operations())
}

func TestLimitOrderTightensPrice(t *testing.T) {
	_, btc, _ := newFixture(t, 5)

	o := NewLimit(btc.Book, 3, nil, DefaultTuning(), zerolog.Nop())

	ops := o.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, orderbook.SideBids, ops[0].Offer.Side)
	// Best bid 10, best ask 12: spread% is 100*2/12. The placed price moves
	// up by tightening * spread% / 100.
	wantDiff := DefaultTuning().SpreadTightening * (100 * 2.0 / 12.0) / 100
	assert.InDelta(t, 10*(1+wantDiff), ops[0].Offer.Price, 1e-9)
	// The rational follows the adjusted price.
	assert.InDelta(t, ops[0].Offer.Price, ops[0].Offer.PriceR.Float(), 1e-6)
}

func TestBalanceNoOpCases(t *testing.T) {
	_, btc, _ := newFixture(t, 5)

	unresolved := NewRebalance(&stubTarget{asset: btc}, DefaultTuning(), zerolog.Nop())
	assert.Empty(t, unresolved.Operations())

	zeroDelta := NewRebalance(&stubTarget{asset: btc, amount: 5, resolved: true}, DefaultTuning(), zerolog.Nop())
	assert.Empty(t, zeroDelta.Operations())
}

func TestBalanceWaitsForBook(t *testing.T) {
	r := domain.NewRegistry("XLM", nil, zerolog.Nop())
	btc := r.ResolveAsset("BTC", domain.TypeCrypto, false)
	bal := r.ResolveBalance(btc, r.ResolveAnchor("GA"))
	bal.Update(5, 0, 0)

	o := NewRebalance(&stubTarget{asset: btc, amount: 10, resolved: true, delta: 5}, DefaultTuning(), zerolog.Nop())

	assert.Empty(t, o.Operations())
	assert.Equal(t, []string{"Fetching orderbook..."}, o.Description("USD"))
}

func TestBalanceDefersWhileOffersOpen(t *testing.T) {
	_, btc, balances := newFixture(t, 5)
	balances[0].Update(5, 1, 0)

	o := NewRebalance(&stubTarget{asset: btc, amount: 10, resolved: true, delta: 5}, DefaultTuning(), zerolog.Nop())

	assert.Empty(t, o.Operations())
	assert.Equal(t, []string{"Rebalancing..."}, o.Description("USD"))
}

func TestBalanceSingleHoldingOneOperation(t *testing.T) {
	_, btc, balances := newFixture(t, 5)

	o := NewRebalance(&stubTarget{asset: btc, amount: 10, resolved: true, delta: 5}, DefaultTuning(), zerolog.Nop())

	// The single balance's headroom is the full delta.
	assert.Equal(t, 5.0, balances[0].Tradable())

	ops := o.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, 5.0, ops[0].Amount)
	assert.Equal(t, orderbook.SideBids, ops[0].Offer.Side)
}

func TestBalanceCoveringBalanceTradesAlone(t *testing.T) {
	// Held 10 and 2, buying 6 more toward a resolved 18. The even split is 9
	// with a +-20% band: headrooms 0.8 and 8.8, so the second balance covers
	// the delta alone.
	_, btc, balances := newFixture(t, 10, 2)

	o := NewRebalance(&stubTarget{asset: btc, amount: 18, resolved: true, delta: 6}, DefaultTuning(), zerolog.Nop())

	assert.InDelta(t, 0.8, balances[0].Tradable(), 1e-9)
	assert.InDelta(t, 8.8, balances[1].Tradable(), 1e-9)

	ops := o.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, 6.0, ops[0].Amount)
	assert.Equal(t, balances[1].AnchorName(), ops[0].Offer.Balance.AnchorName())
}

func TestBalanceSplitsAcrossAnchors(t *testing.T) {
	// Held 8 and 7, buying 6 toward a resolved 21. Headrooms 4.6 and 5.6:
	// neither covers the delta, so it splits in proportion.
	_, btc, balances := newFixture(t, 8, 7)

	o := NewRebalance(&stubTarget{asset: btc, amount: 21, resolved: true, delta: 6}, DefaultTuning(), zerolog.Nop())

	assert.InDelta(t, 4.6, balances[0].Tradable(), 1e-9)
	assert.InDelta(t, 5.6, balances[1].Tradable(), 1e-9)

	ops := o.Operations()
	require.Len(t, ops, 2)

	var total float64
	for _, op := range ops {
		total += op.Amount
	}
	assert.InDelta(t, 6.0, total, 1e-6)
	assert.InDelta(t, 4.6/10.2*6, ops[0].Amount, 1e-6)
	assert.InDelta(t, 5.6/10.2*6, ops[1].Amount, 1e-6)
	assert.NotEqual(t, ops[0].Offer.Balance.AnchorName(), ops[1].Offer.Balance.AnchorName())
}

func TestRefreshIsIdempotent(t *testing.T) {
	_, btc, _ := newFixture(t, 8, 7)

	o := NewRebalance(&stubTarget{asset: btc, amount: 21, resolved: true, delta: 6}, DefaultTuning(), zerolog.Nop())

	first := o.Operations()
	o.Refresh()
	second := o.Operations()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Amount, second[i].Amount)
		assert.Equal(t, first[i].Cost, second[i].Cost)
	}
}

func TestBalanceSellUsesAsks(t *testing.T) {
	_, btc, balances := newFixture(t, 10)

	o := NewRebalance(&stubTarget{asset: btc, amount: 6, resolved: true, delta: -4}, DefaultTuning(), zerolog.Nop())

	assert.Equal(t, 4.0, balances[0].Tradable())

	ops := o.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, orderbook.SideAsks, ops[0].Offer.Side)
	assert.Equal(t, 4.0, ops[0].Amount)
}

func TestTradeOpsDirections(t *testing.T) {
	r, btc, _ := newFixture(t, 10)
	_ = r

	buy := NewRebalance(&stubTarget{asset: btc, amount: 15, resolved: true, delta: 5}, DefaultTuning(), zerolog.Nop())
	buyOps := buy.TradeOps()
	require.Len(t, buyOps, 1)
	assert.Equal(t, "XLM", buyOps[0].Selling)
	assert.Contains(t, buyOps[0].Buying, "BTC:")

	sell := NewRebalance(&stubTarget{asset: btc, amount: 6, resolved: true, delta: -4}, DefaultTuning(), zerolog.Nop())
	sellOps := sell.TradeOps()
	require.Len(t, sellOps, 1)
	assert.Equal(t, "XLM", sellOps[0].Buying)
	assert.Contains(t, sellOps[0].Selling, "BTC:")
	assert.Equal(t, "4.0000000", sellOps[0].Amount)
}

func TestMinOfferValueFilter(t *testing.T) {
	// A tiny delta fails the minimum offer value floor unless the target is
	// amount-denominated.
	_, btc, _ := newFixture(t, 10)

	tuning := DefaultTuning()
	tuning.MinOfferValue = 100

	filtered := NewRebalance(&stubTarget{asset: btc, amount: 10.01, resolved: true, delta: 0.01}, tuning, zerolog.Nop())
	assert.Empty(t, filtered.Operations())

	amountMode := NewRebalance(&stubTarget{asset: btc, amount: 10.01, resolved: true, delta: 0.01, amountMode: true}, tuning, zerolog.Nop())
	assert.Len(t, amountMode.Operations(), 1)
}
