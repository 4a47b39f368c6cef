package domain

import (
	"sync"

	"github.com/aristath/equilibre/internal/modules/orderbook"
)

// Balance is one anchor's holding of an asset. Its amount and open-offer
// liabilities come from the account snapshot; its tradable headroom is
// assigned by the rebalance algorithm before orders are built.
type Balance struct {
	mu sync.RWMutex

	asset  *Asset
	anchor *Anchor

	amount  float64
	buying  float64
	selling float64

	// tradable is the amount this balance may shift in the current pass
	// without leaving its deviation band.
	tradable float64

	// Book is the balance's native ladder against the venue's base asset.
	Book *orderbook.Book
}

// Asset returns the asset this balance holds.
func (b *Balance) Asset() *Asset { return b.asset }

// Anchor returns the issuing anchor.
func (b *Balance) Anchor() *Anchor { return b.anchor }

// AnchorName returns the issuing anchor's display identity.
func (b *Balance) AnchorName() string { return b.anchor.Name() }

// Update replaces the balance's snapshot figures.
func (b *Balance) Update(amount, buying, selling float64) {
	b.mu.Lock()
	b.amount = amount
	b.buying = buying
	b.selling = selling
	b.mu.Unlock()
}

// Amount returns the held amount.
func (b *Balance) Amount() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.amount
}

// Buying returns the amount locked in open buy offers.
func (b *Balance) Buying() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buying
}

// Selling returns the amount locked in open sell offers.
func (b *Balance) Selling() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selling
}

// HasOpenOffers reports whether any live offer still references this balance.
func (b *Balance) HasOpenOffers() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buying > 0 || b.selling > 0
}

// Tradable returns the headroom assigned by the current rebalance pass.
func (b *Balance) Tradable() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tradable
}

// SetTradable assigns the balance's headroom for the current pass.
func (b *Balance) SetTradable(v float64) {
	b.mu.Lock()
	b.tradable = v
	b.mu.Unlock()
}
