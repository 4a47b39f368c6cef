// Package order turns a resolved allocation delta into priced trade
// operations selected from an order book. Orders are reactive: Refresh
// rebuilds the operation set from current book data, updating existing
// operations in place when their key is unchanged.
package order

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/orderbook"
)

// Type identifies how an order selects its operations.
type Type string

const (
	// TypeMarket takes liquidity at the current book price.
	TypeMarket Type = "market"
	// TypeLimit places a maker offer near the top of the book.
	TypeLimit Type = "limit"
	// TypeBalance realizes a rebalancing delta, splitting across anchors
	// when no single balance has enough headroom.
	TypeBalance Type = "balance"
)

// Tuning carries the rebalancing thresholds. Zero values are not usable;
// construct with DefaultTuning and override fields as needed.
type Tuning struct {
	// BalanceTargetDeviation is how far a balance may drift from its even
	// split across anchors, as a fraction of the split.
	BalanceTargetDeviation float64
	// MinOfferValue is the smallest operation worth placing, in quote-asset
	// units.
	MinOfferValue float64
	// MaxSpread bounds how far a placed price may sit from the asset's
	// global price, as a fraction.
	MaxSpread float64
	// SpreadTightening shifts our price ahead of the copied offer, as a
	// fraction of the pair's spread percentage.
	SpreadTightening float64
	// SkipMarginalOffers skips offers whose cumulative base volume is below
	// this fraction of the traded amount.
	SkipMarginalOffers float64
}

// DefaultTuning returns the production thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		BalanceTargetDeviation: 0.2,
		MinOfferValue:          1,
		MaxSpread:              0.05,
		SpreadTightening:       0.01,
		SkipMarginalOffers:     0.1,
	}
}

// RebalanceTarget is the resolved allocation node a balance order realizes.
type RebalanceTarget interface {
	// Asset is the asset being rebalanced.
	Asset() *domain.Asset
	// ResolvedAmount is the amount the node resolved to, and whether the
	// node has been resolved at all this pass.
	ResolvedAmount() (float64, bool)
	// AmountDelta is resolved amount minus currently held amount. Positive
	// means buy.
	AmountDelta() float64
	// AmountDenominated reports whether the node's size is expressed as an
	// asset amount rather than a value share.
	AmountDenominated() bool
}

// Operation is one priced trade leg. Operations keep a stable key so that a
// refresh updates a still-valid leg instead of replacing it.
type Operation struct {
	ID     string
	Offer  orderbook.Offer
	Amount float64
	Cost   float64
}

// Order builds and holds the operations realizing one trade intent.
type Order struct {
	mu sync.Mutex

	id   string
	typ  Type
	book *orderbook.Book

	// parameters, by type
	size   float64
	filter func(*orderbook.Offer) bool
	target RebalanceTarget

	ops    []Operation
	status []string

	tuning Tuning
	log    zerolog.Logger
}

// NewMarket creates a market order trading size base units against book.
// Positive size buys, negative sells.
func NewMarket(book *orderbook.Book, size float64, tuning Tuning, log zerolog.Logger) *Order {
	o := newOrder(TypeMarket, book, tuning, log)
	o.size = size
	o.Refresh()
	return o
}

// NewLimit creates a limit order placing size base units on book, priced
// just inside the best offer matching filter.
func NewLimit(book *orderbook.Book, size float64, filter func(*orderbook.Offer) bool, tuning Tuning, log zerolog.Logger) *Order {
	o := newOrder(TypeLimit, book, tuning, log)
	o.size = size
	o.filter = filter
	o.Refresh()
	return o
}

// NewRebalance creates the balance order realizing target's delta against
// the asset's aggregated book.
func NewRebalance(target RebalanceTarget, tuning Tuning, log zerolog.Logger) *Order {
	o := newOrder(TypeBalance, target.Asset().Book, tuning, log)
	o.target = target
	o.Refresh()
	return o
}

func newOrder(typ Type, book *orderbook.Book, tuning Tuning, log zerolog.Logger) *Order {
	return &Order{
		id:     uuid.New().String(),
		typ:    typ,
		book:   book,
		tuning: tuning,
		log:    log.With().Str("component", "order").Str("type", string(typ)).Logger(),
	}
}

// ID returns the order's identifier.
func (o *Order) ID() string { return o.id }

// Type returns the order's kind.
func (o *Order) Type() Type { return o.typ }

// Refresh clears the operation set and rebuilds it from current book data.
func (o *Order) Refresh() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.ops = o.ops[:0]
	o.status = nil

	switch o.typ {
	case TypeMarket:
		o.buildMarket()
	case TypeLimit:
		o.buildLimit(o.book, o.size, o.filter)
	case TypeBalance:
		o.buildBalance()
	}
}

// Operations returns a snapshot of the order's current operations.
func (o *Order) Operations() []Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Operation, len(o.ops))
	copy(out, o.ops)
	return out
}

// Description returns human-readable lines for the order: a status line
// while the order cannot be built yet, otherwise one line per operation.
func (o *Order) Description(currency string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != nil {
		out := make([]string, len(o.status))
		copy(out, o.status)
		return out
	}

	desc := make([]string, 0, len(o.ops))
	for _, op := range o.ops {
		verb := "Sell"
		if opDirection(op) == directionBuy {
			verb = "Buy"
		}
		code := op.Offer.Balance.(*domain.Balance).Asset().Code()
		desc = append(desc, fmt.Sprintf("%s %.7g %s at %.7g %s", verb, math.Abs(op.Amount), code, op.Offer.Price, currency))
	}
	return desc
}

// buildMarket consumes the side opposite to the trade until size is covered.
func (o *Order) buildMarket() {
	if o.size == 0 {
		return
	}
	side := orderbook.SideBids
	if o.size > 0 {
		side = orderbook.SideAsks
	}
	amount := math.Abs(o.size)
	offer := o.book.FindOffer(side, func(of *orderbook.Offer) bool {
		return of.BaseVolume > amount
	})
	if offer == nil {
		return
	}
	o.addOperation(*offer, amount)
}

// buildLimit places size on the maker side of book, copying the best offer
// that passes filter and tightening its price.
func (o *Order) buildLimit(book *orderbook.Book, size float64, filter func(*orderbook.Offer) bool) {
	if size == 0 {
		return
	}
	side := orderbook.SideAsks
	if size > 0 {
		side = orderbook.SideBids
	}
	offer := book.FindOffer(side, filter)
	if offer == nil {
		return
	}
	o.addOperation(o.tightenSpread(*offer, book), math.Abs(size))
}

// addOperation records an operation for offer, updating in place when an
// operation with the same key already exists. A zero amount keeps the
// existing operation's amount.
func (o *Order) addOperation(offer orderbook.Offer, amount float64) {
	key := operationKey(offer, amount > 0)
	for i := range o.ops {
		if o.ops[i].ID == key {
			if amount == 0 {
				amount = o.ops[i].Amount
			}
			o.ops[i] = Operation{ID: key, Offer: offer, Amount: amount, Cost: amount * offer.Price}
			return
		}
	}
	o.ops = append(o.ops, Operation{ID: key, Offer: offer, Amount: amount, Cost: amount * offer.Price})
}

// operationKey derives the stable identity of an operation: the anchor plus
// either the maker price or the taker marker.
func operationKey(offer orderbook.Offer, make bool) string {
	suffix := "take"
	if make {
		suffix = strconv.FormatFloat(offer.Price, 'g', -1, 64)
	}
	return offer.Balance.AnchorName() + ":" + suffix
}

type direction int

const (
	directionBuy direction = iota
	directionSell
)

// opDirection reads the trade direction from the amount sign and the side
// the copied offer came from.
func opDirection(op Operation) direction {
	if op.Amount > 0 && op.Offer.Side == orderbook.SideBids ||
		op.Amount < 0 && op.Offer.Side == orderbook.SideAsks {
		return directionBuy
	}
	return directionSell
}
