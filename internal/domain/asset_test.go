package domain

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/equilibre/internal/modules/orderbook"
)

func newTestRegistry() *Registry {
	return NewRegistry("XLM", map[string]string{
		"GAREELUB43IRHWEASCFBLKHURCGMHE5IF6XSE7EXDLACYHGRHM43RFOX": "NaoBTC",
	}, zerolog.Nop())
}

func TestResolveReturnsSameInstance(t *testing.T) {
	r := newTestRegistry()

	btc := r.ResolveAsset("BTC", TypeCrypto, false)
	assert.Same(t, btc, r.ResolveAsset("BTC", TypeCrypto, false))

	anchor := r.ResolveAnchor("GAREELUB43IRHWEASCFBLKHURCGMHE5IF6XSE7EXDLACYHGRHM43RFOX")
	assert.Same(t, anchor, r.ResolveAnchor(anchor.Address))
	assert.Equal(t, "NaoBTC", anchor.Name())

	bal := r.ResolveBalance(btc, anchor)
	assert.Same(t, bal, r.ResolveBalance(btc, anchor))
	require.NotNil(t, bal.Book)
	assert.Len(t, btc.Balances(), 1)
}

func TestAnchorNameFallsBackToShortAddress(t *testing.T) {
	r := newTestRegistry()
	anchor := r.ResolveAnchor("GATEMHCCKCY67ZUCKTROYN24ZYT5GK4EQZ65JJLDHKHRUZI3EUEKMTCH")
	assert.Equal(t, "GATEM...KMTCH", anchor.Name())
}

func TestNativeBalanceHasNoBook(t *testing.T) {
	r := newTestRegistry()
	anchor := r.ResolveAnchor("G...")
	bal := r.ResolveBalance(r.Native(), anchor)
	assert.Nil(t, bal.Book)
}

func TestAssetAmountSumsBalances(t *testing.T) {
	r := newTestRegistry()
	btc := r.ResolveAsset("BTC", TypeCrypto, false)
	a := r.ResolveBalance(btc, r.ResolveAnchor("GA"))
	b := r.ResolveBalance(btc, r.ResolveAnchor("GB"))

	a.Update(0.1000001, 0, 0)
	b.Update(0.2000002, 0, 0)

	assert.Equal(t, 0.3000003, btc.Amount())
}

func TestAssetPricePrefersGlobal(t *testing.T) {
	r := newTestRegistry()
	eur := r.ResolveAsset("EUR", TypeFiat, true)
	assert.Equal(t, 0.0, eur.Price())

	eur.SetGlobalPrice(1.1)
	assert.Equal(t, 1.1, eur.Price())
	assert.True(t, eur.HasGlobalPrice())
}

func TestAssetPriceFallsBackToBook(t *testing.T) {
	r := newTestRegistry()
	r.Native().SetGlobalPrice(0.1)

	btc := r.ResolveAsset("BTC", TypeCrypto, false)
	bal := r.ResolveBalance(btc, r.ResolveAnchor("GA"))

	// Quote volume 600 at the first level clears the default market depth.
	bal.Book.Ingest(orderbook.RawBook{
		Bids: []orderbook.RawOffer{{Price: 3.0, Amount: 600}},
		Asks: []orderbook.RawOffer{{Price: 4.0, Amount: 1}},
	})

	assert.InDelta(t, 0.3, btc.Price(), 1e-9)
}

func TestRegistryMarketDepthReachesBooks(t *testing.T) {
	r := newTestRegistry()
	r.Native().SetGlobalPrice(0.1)
	r.SetMarketDepth(100)

	btc := r.ResolveAsset("BTC", TypeCrypto, false)
	bal := r.ResolveBalance(btc, r.ResolveAnchor("GA"))

	// Quote volume 60 clears the default depth of 50 but not the
	// configured 100.
	bal.Book.Ingest(orderbook.RawBook{
		Bids: []orderbook.RawOffer{{Price: 3.0, Amount: 60}},
		Asks: []orderbook.RawOffer{{Price: 4.0, Amount: 1}},
	})
	assert.Equal(t, 0.0, btc.Price())

	// Lowering the depth afterwards reaches books created earlier.
	r.SetMarketDepth(5)
	assert.InDelta(t, 0.3, btc.Price(), 1e-9)
}

func TestHasOpenOffers(t *testing.T) {
	r := newTestRegistry()
	btc := r.ResolveAsset("BTC", TypeCrypto, false)
	bal := r.ResolveBalance(btc, r.ResolveAnchor("GA"))

	assert.False(t, btc.HasOpenOffers())
	bal.Update(1, 0.5, 0)
	assert.True(t, btc.HasOpenOffers())
}

func TestLiabilitiesValuedAtAssetPrice(t *testing.T) {
	r := newTestRegistry()
	eur := r.ResolveAsset("EUR", TypeFiat, true)
	eur.SetGlobalPrice(2.0)

	a := r.ResolveBalance(eur, r.ResolveAnchor("GA"))
	a.Update(100, 10, 4)

	assert.InDelta(t, 12.0, eur.Liabilities(), 1e-9)
}

func TestIsSupported(t *testing.T) {
	r := newTestRegistry()
	assert.True(t, r.ResolveAsset("EUR", TypeFiat, true).IsSupported())

	unknown := r.ResolveAsset("ZZZ", TypeUnknown, false)
	assert.False(t, unknown.IsSupported())
	unknown.SetGlobalPrice(3)
	assert.True(t, unknown.IsSupported())
}
