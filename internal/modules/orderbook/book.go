// Package orderbook maintains per-anchor bid/ask ladders and aggregates them
// into one merged ladder per asset. Native books poll a venue source; the
// aggregated book recomputes whenever any child ladder changes.
package orderbook

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/modules/pricing"
)

// Side identifies one half of an order book.
type Side string

const (
	SideBids Side = "bids"
	SideAsks Side = "asks"
)

// AssetRef is the minimal view of an asset a book needs for pricing.
type AssetRef interface {
	// Code is the asset's display code.
	Code() string
	// Price is the asset's current reference-currency price.
	Price() float64
	// HasGlobalPrice reports whether an independent price source exists
	// beyond the order book itself.
	HasGlobalPrice() bool
}

// BalanceRef identifies the anchor holding behind an offer.
type BalanceRef interface {
	// AnchorName is the short identity of the issuing anchor.
	AnchorName() string
	// Tradable is the headroom the rebalancer assigned to this balance.
	Tradable() float64
}

// Offer is one price level of a ladder, normalized into reference-currency
// terms with running cumulative volumes over more-favorable levels.
type Offer struct {
	Side        Side
	Price       float64 // reference-currency price
	PriceR      pricing.Rational
	BasePrice   float64 // native quote price
	Amount      float64 // base-asset amount
	QuoteAmount float64
	Volume      float64 // cumulative reference-currency volume
	BaseVolume  float64 // cumulative base-asset volume
	QuoteVolume float64 // cumulative quote-asset volume
	Balance     BalanceRef
}

// RawOffer is one venue price level before normalization. Amount carries the
// base amount for asks and the quote amount for bids, matching the venue's
// order-book payload.
type RawOffer struct {
	Price  float64
	Amount float64
}

// RawBook is a fetched venue ladder pair.
type RawBook struct {
	Bids []RawOffer
	Asks []RawOffer
}

// Book is either a native ladder (one anchor, quoted against the reference
// asset) or an aggregated ladder merging every anchor's native book.
type Book struct {
	mu sync.RWMutex

	base    AssetRef
	quote   AssetRef   // native only
	balance BalanceRef // native only

	// nil means the side has never been fetched (or no child has data).
	bids []Offer
	asks []Offer

	children  []*Book
	observers []func(Side)

	marketDepth float64

	log zerolog.Logger
}

// NewNative creates the ladder for one anchor's holding of base, quoted
// against the reference asset.
func NewNative(base AssetRef, quote AssetRef, balance BalanceRef, log zerolog.Logger) *Book {
	return &Book{
		base:        base,
		quote:       quote,
		balance:     balance,
		marketDepth: defaultMarketDepth,
		log:         log.With().Str("book", base.Code()+"/"+quote.Code()).Logger(),
	}
}

// NewAggregated creates the merged ladder for an asset across all anchors.
func NewAggregated(base AssetRef, log zerolog.Logger) *Book {
	return &Book{
		base:        base,
		children:    []*Book{},
		marketDepth: defaultMarketDepth,
		log:         log.With().Str("book", base.Code()+" (aggregated)").Logger(),
	}
}

// IsAggregated reports whether this book merges child books.
func (b *Book) IsAggregated() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.children != nil
}

// Balance returns the owning balance of a native book (nil for aggregated).
func (b *Book) Balance() BalanceRef { return b.balance }

// Base returns the book's base asset.
func (b *Book) Base() AssetRef { return b.base }

// Quote returns the reference asset a native book is quoted against, or nil
// for an aggregated book.
func (b *Book) Quote() AssetRef { return b.quote }

// Subscribe registers fn to run after a side of this book is replaced.
// Observers run synchronously on the mutating goroutine, outside the lock.
func (b *Book) Subscribe(fn func(Side)) {
	b.mu.Lock()
	b.observers = append(b.observers, fn)
	b.mu.Unlock()
}

// AddChild attaches a native book to an aggregated one and re-merges both
// sides whenever the child changes.
func (b *Book) AddChild(child *Book) {
	b.mu.Lock()
	b.children = append(b.children, child)
	b.mu.Unlock()

	child.Subscribe(func(side Side) { b.mergeOffers(side) })
	b.mergeOffers(SideBids)
	b.mergeOffers(SideAsks)
}

// Ingest replaces each side of a native book with a normalized sequence,
// unless the raw sequence is pairwise-equal to what is already held.
func (b *Book) Ingest(raw RawBook) {
	var changed []Side

	b.mu.Lock()
	if !rawEquals(b.bids, raw.Bids) {
		b.bids = b.normalize(raw.Bids, SideBids)
		changed = append(changed, SideBids)
	}
	if !rawEquals(b.asks, raw.Asks) {
		b.asks = b.normalize(raw.Asks, SideAsks)
		changed = append(changed, SideAsks)
	}
	observers := b.observers
	b.mu.Unlock()

	for _, side := range changed {
		for _, fn := range observers {
			fn(side)
		}
	}
}

// RefreshPrices recomputes reference-currency prices and volumes after the
// quote asset's global price changed. Native books only.
func (b *Book) RefreshPrices() {
	var changed []Side

	b.mu.Lock()
	if b.bids != nil {
		b.bids = b.reprice(b.bids)
		changed = append(changed, SideBids)
	}
	if b.asks != nil {
		b.asks = b.reprice(b.asks)
		changed = append(changed, SideAsks)
	}
	observers := b.observers
	b.mu.Unlock()

	for _, side := range changed {
		for _, fn := range observers {
			fn(side)
		}
	}
}

// normalize converts a raw venue ladder into reference-currency offers with
// running volumes. Caller holds the lock.
func (b *Book) normalize(raw []RawOffer, side Side) []Offer {
	offers := make([]Offer, len(raw))
	for i, row := range raw {
		offers[i] = Offer{
			Side:        side,
			BasePrice:   row.Price,
			PriceR:      pricing.Quantize(row.Price, 1),
			Balance:     b.balance,
			QuoteAmount: row.Amount,
		}
		if side == SideAsks {
			offers[i].Amount = row.Amount
		}
	}
	return b.reprice(offers)
}

// reprice rebuilds derived amounts, reference prices, and cumulative volumes
// over a ladder. Asks carry base amounts; bids carry quote amounts. Each
// derived value is rounded to the venue's 7-decimal precision.
func (b *Book) reprice(offers []Offer) []Offer {
	quotePrice := 0.0
	if b.quote != nil {
		quotePrice = b.quote.Price()
	}

	out := make([]Offer, len(offers))
	var volume, baseVolume, quoteVolume float64
	for i, row := range offers {
		if row.Side == SideAsks {
			row.QuoteAmount = pricing.Round7(row.Amount * row.BasePrice)
		} else {
			row.Amount = pricing.Round7(row.QuoteAmount / row.BasePrice)
		}
		row.Price = pricing.Round7(row.BasePrice * quotePrice)

		volume += pricing.Round7(row.Amount * row.Price)
		baseVolume += row.Amount
		quoteVolume += row.QuoteAmount
		row.Volume = volume
		row.BaseVolume = baseVolume
		row.QuoteVolume = quoteVolume

		out[i] = row
	}
	return out
}

// mergeOffers rebuilds one side of an aggregated book from its children:
// concatenate, sort by price (bids descending, asks ascending), recompute
// cumulative volumes. With fewer than two children the single child's ladder
// is adopted as-is (or nil).
func (b *Book) mergeOffers(side Side) {
	b.mu.Lock()

	if len(b.children) < 2 {
		if len(b.children) == 1 {
			b.setSideLocked(side, b.children[0].Side(side))
		} else {
			b.setSideLocked(side, nil)
		}
		observers := b.observers
		b.mu.Unlock()
		for _, fn := range observers {
			fn(side)
		}
		return
	}

	var merged []Offer
	for _, child := range b.children {
		merged = append(merged, child.Side(side)...)
	}
	if len(merged) == 0 {
		b.setSideLocked(side, nil)
		observers := b.observers
		b.mu.Unlock()
		for _, fn := range observers {
			fn(side)
		}
		return
	}

	if side == SideBids {
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Price > merged[j].Price })
	} else {
		sort.SliceStable(merged, func(i, j int) bool { return merged[i].Price < merged[j].Price })
	}

	var volume, baseVolume, quoteVolume float64
	for i := range merged {
		volume += pricing.Round7(merged[i].Amount * merged[i].Price)
		baseVolume += merged[i].Amount
		quoteVolume += merged[i].QuoteAmount
		merged[i].Volume = volume
		merged[i].BaseVolume = baseVolume
		merged[i].QuoteVolume = quoteVolume
	}

	b.setSideLocked(side, merged)
	observers := b.observers
	b.mu.Unlock()

	for _, fn := range observers {
		fn(side)
	}
}

func (b *Book) setSideLocked(side Side, offers []Offer) {
	if side == SideBids {
		b.bids = offers
	} else {
		b.asks = offers
	}
}

// Side returns a snapshot of one side's offers. nil when never fetched.
func (b *Book) Side(side Side) []Offer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if side == SideBids {
		return b.bids
	}
	return b.asks
}

// IsFetched reports whether the book holds data. A native book is fetched
// once both sides are non-nil; an aggregated book only when every child is.
func (b *Book) IsFetched() bool {
	b.mu.RLock()
	children := b.children
	fetched := b.bids != nil && b.asks != nil
	b.mu.RUnlock()

	if children == nil {
		return fetched
	}
	for _, child := range children {
		if !child.IsFetched() {
			return false
		}
	}
	return len(children) > 0
}

// BestBid returns the top bid price, or 0 when the side is empty.
func (b *Book) BestBid() float64 { return b.bestPrice(SideBids) }

// BestAsk returns the top ask price, or 0 when the side is empty.
func (b *Book) BestAsk() float64 { return b.bestPrice(SideAsks) }

func (b *Book) bestPrice(side Side) float64 {
	offers := b.Side(side)
	if len(offers) == 0 {
		return 0
	}
	return offers[0].Price
}

// Midpoint returns (bestBid+bestAsk)/2.
func (b *Book) Midpoint() float64 {
	return (b.BestBid() + b.BestAsk()) / 2
}

// Spread returns bestAsk-bestBid.
func (b *Book) Spread() float64 {
	return b.BestAsk() - b.BestBid()
}

// SpreadPct returns the spread as a percentage of the best ask.
func (b *Book) SpreadPct() float64 {
	bestAsk := b.BestAsk()
	if bestAsk == 0 {
		return 0
	}
	return 100 * b.Spread() / bestAsk
}

// Price returns the asset price implied by the book: the midpoint when the
// base asset carries an independent global price, otherwise the depth-based
// market price over the bids.
func (b *Book) Price() float64 {
	if b.base.HasGlobalPrice() {
		return b.Midpoint()
	}
	b.mu.RLock()
	depth := b.marketDepth
	b.mu.RUnlock()
	return b.MarketPrice(SideBids, depth)
}

// defaultMarketDepth is the cumulative quote volume, in reference-asset
// units, at which the market price of an unquoted asset is read.
const defaultMarketDepth = 50.0

// SetMarketDepth changes the cumulative quote volume at which Price reads
// an unquoted asset's market price. Non-positive depths are ignored.
func (b *Book) SetMarketDepth(depth float64) {
	if depth <= 0 {
		return
	}
	b.mu.Lock()
	b.marketDepth = depth
	b.mu.Unlock()
}

// MarketPrice returns the price of the first offer on side whose cumulative
// quote volume exceeds depth, or 0 when the book never reaches that depth.
func (b *Book) MarketPrice(side Side, depth float64) float64 {
	offer := b.FindOffer(side, func(o *Offer) bool { return o.QuoteVolume > depth })
	if offer == nil {
		return 0
	}
	return offer.Price
}

// FindOffer scans side in ranked order, skipping offers that fail filter and
// accepting at most one offer per distinct anchor. The scan stops once every
// known anchor has contributed a candidate. The LAST accepted offer is
// returned: the worst-priced of the accepted set, trading price for anchor
// diversification. Returns nil when nothing matches.
func (b *Book) FindOffer(side Side, filter func(*Offer) bool) *Offer {
	offers := b.Side(side)

	b.mu.RLock()
	anchorCount := 1
	if b.children != nil {
		anchorCount = len(b.children)
	}
	b.mu.RUnlock()

	anchors := make(map[string]bool)
	var last *Offer
	for i := range offers {
		offer := &offers[i]
		if filter != nil && !filter(offer) {
			continue
		}
		anchor := offer.Balance.AnchorName()
		if !anchors[anchor] {
			anchors[anchor] = true
			last = offer
		}
		if len(anchors) == anchorCount {
			break
		}
	}
	return last
}

// rawEquals reports whether a held ladder matches a raw sequence rank by
// rank on native price and raw amount. Used to skip re-normalization when a
// poll returns unchanged data. A nil held side never equals.
func rawEquals(held []Offer, raw []RawOffer) bool {
	if held == nil {
		return false
	}
	if len(held) != len(raw) {
		return false
	}
	for i := range held {
		if held[i].BasePrice != raw[i].Price {
			return false
		}
		rawAmount := held[i].Amount
		if held[i].Side == SideBids {
			rawAmount = held[i].QuoteAmount
		}
		if rawAmount != raw[i].Amount {
			return false
		}
	}
	return true
}
