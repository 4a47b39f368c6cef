package domain

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/modules/orderbook"
	"github.com/aristath/equilibre/internal/modules/pricing"
)

// AssetType classifies how an asset is priced.
type AssetType string

const (
	// TypeCrypto assets are priced by market data when they carry a global
	// quote, otherwise by their own order book depth.
	TypeCrypto AssetType = "crypto"
	// TypeFiat assets always carry a global exchange-rate price.
	TypeFiat AssetType = "fiat"
	// TypeUnknown assets have no external price source at all.
	TypeUnknown AssetType = "unknown"
)

// Asset is one tradable asset of the account, aggregated over every anchor
// that issues it.
type Asset struct {
	mu sync.RWMutex

	code string
	typ  AssetType

	globalPrice    float64
	useGlobalPrice bool

	balances []*Balance

	// Book is the aggregated ladder merging every anchor's native book.
	Book *orderbook.Book
}

// NewAsset creates an asset with its aggregated book attached.
func NewAsset(code string, typ AssetType, useGlobalPrice bool, log zerolog.Logger) *Asset {
	a := &Asset{code: code, typ: typ, useGlobalPrice: useGlobalPrice}
	a.Book = orderbook.NewAggregated(a, log)
	return a
}

// Code returns the asset's display code.
func (a *Asset) Code() string { return a.code }

// Type returns the asset's pricing class.
func (a *Asset) Type() AssetType { return a.typ }

// HasGlobalPrice reports whether the asset is priced by an external market
// data source rather than by its own order book.
func (a *Asset) HasGlobalPrice() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.useGlobalPrice
}

// SetGlobalPrice stores a fresh external price and recomputes every native
// book quoted against this asset.
func (a *Asset) SetGlobalPrice(price float64) {
	a.mu.Lock()
	a.globalPrice = price
	a.mu.Unlock()
}

// GlobalPrice returns the last external price set, 0 when none arrived yet.
func (a *Asset) GlobalPrice() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.globalPrice
}

// Price returns the asset's reference-currency price: the global price when
// one is set, otherwise the price implied by the aggregated book.
func (a *Asset) Price() float64 {
	a.mu.RLock()
	global := a.globalPrice
	a.mu.RUnlock()

	if global != 0 {
		return global
	}
	if a.Book == nil {
		return 0
	}
	return a.Book.Price()
}

// AddBalance attaches an anchor holding and wires its native book into the
// aggregated ladder.
func (a *Asset) AddBalance(b *Balance) {
	a.mu.Lock()
	a.balances = append(a.balances, b)
	a.mu.Unlock()

	if b.Book != nil {
		a.Book.AddChild(b.Book)
	}
}

// Balances returns a snapshot of the asset's anchor holdings.
func (a *Asset) Balances() []*Balance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Balance, len(a.balances))
	copy(out, a.balances)
	return out
}

// Amount returns the total held amount across anchors, at the venue's fixed
// 7-decimal precision.
func (a *Asset) Amount() float64 {
	var sum float64
	for _, b := range a.Balances() {
		sum += b.Amount()
	}
	return pricing.Round7(sum)
}

// Value returns the total reference-currency value of the holding.
func (a *Asset) Value() float64 {
	amount := a.Amount()
	if amount == 0 {
		return 0
	}
	return amount * a.Price()
}

// Liabilities returns the reference-currency value locked in open offers.
func (a *Asset) Liabilities() float64 {
	var raw float64
	for _, b := range a.Balances() {
		raw += b.Buying() - b.Selling()
	}
	return a.Price() * raw
}

// HasOpenOffers reports whether any live offer still references this asset.
// Rebalancing for a busy asset is deferred to the next pass.
func (a *Asset) HasOpenOffers() bool {
	for _, b := range a.Balances() {
		if b.HasOpenOffers() {
			return true
		}
	}
	return false
}

// IsSupported reports whether the asset can be valued at all: a typed asset
// always is, an unknown one only once some price is observable.
func (a *Asset) IsSupported() bool {
	return a.typ != TypeUnknown || a.Price() != 0
}
