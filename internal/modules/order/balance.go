package order

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/orderbook"
	"github.com/aristath/equilibre/internal/modules/pricing"
)

// buildBalance realizes the target's delta. The pass is deferred while the
// book has no two-sided data or the asset still has live open offers.
func (o *Order) buildBalance() {
	target := o.target
	asset := target.Asset()

	if _, ok := target.ResolvedAmount(); !ok || target.AmountDelta() == 0 {
		return
	}

	if o.book.BestBid() == 0 || o.book.BestAsk() == 0 {
		o.status = []string{"Fetching orderbook..."}
		return
	}

	if asset.HasOpenOffers() {
		o.status = []string{"Rebalancing..."}
		return
	}

	o.setBalancesLimits()
	if o.isOneOperationEnough() {
		o.addBalancingOperation(o.book, target.AmountDelta())
	} else {
		o.addSplitTrade()
	}
}

// setBalancesLimits assigns each balance's tradable headroom for this pass.
// With a single priceable balance the full delta is tradable; otherwise each
// balance may move within a deviation band around the even split of the
// resolved amount, in the direction of the delta.
func (o *Order) setBalancesLimits() {
	target := o.target
	deviation := o.tuning.BalanceTargetDeviation

	var balances []*domain.Balance
	for _, b := range target.Asset().Balances() {
		if b.Book != nil && b.Book.Price() != 0 {
			balances = append(balances, b)
		} else {
			b.SetTradable(0)
		}
	}

	switch len(balances) {
	case 0:
		return
	case 1:
		balances[0].SetTradable(math.Abs(target.AmountDelta()))
		return
	}

	resolved, _ := target.ResolvedAmount()
	amountTarget := pricing.Round7(resolved / float64(len(balances)))
	amountMin := pricing.Round7(amountTarget * (1 - deviation))
	amountMax := pricing.Round7(amountTarget * (1 + deviation))

	for _, b := range balances {
		if target.AmountDelta() > 0 {
			b.SetTradable(amountMax - b.Amount())
		} else {
			b.SetTradable(b.Amount() - amountMin)
		}
	}
}

// isOneOperationEnough reports whether some balance's headroom covers the
// full delta magnitude.
func (o *Order) isOneOperationEnough() bool {
	delta := math.Abs(o.target.AmountDelta())
	for _, b := range o.target.Asset().Balances() {
		if b.Tradable() >= delta {
			return true
		}
	}
	return false
}

// addBalancingOperation places size on book as a limit leg filtered by the
// rebalancing constraints.
func (o *Order) addBalancingOperation(book *orderbook.Book, size float64) {
	filter := o.makeOfferFilter(math.Abs(size))
	o.buildLimit(book, size, filter)
}

// addSplitTrade distributes the delta across every balance with positive
// headroom, weighted by each balance's share of the total headroom, each leg
// against that balance's own native book.
func (o *Order) addSplitTrade() {
	var balances []*domain.Balance
	var headrooms []float64
	for _, b := range o.target.Asset().Balances() {
		if b.Tradable() > 0 {
			balances = append(balances, b)
			headrooms = append(headrooms, b.Tradable())
		}
	}
	if len(balances) == 0 {
		return
	}

	total := floats.Sum(headrooms)
	delta := o.target.AmountDelta()
	for i, b := range balances {
		amount := pricing.Round7(headrooms[i] / total * delta)
		if amount == 0 {
			continue
		}
		o.addBalancingOperation(b.Book, amount)
	}
}

// makeOfferFilter builds the offer predicate for a rebalancing leg of
// amountTraded: the offer's balance must have the headroom, the offer must
// not be marginal relative to the traded amount, and the leg must clear the
// minimum offer value unless the target is amount-denominated or empty.
func (o *Order) makeOfferFilter(amountTraded float64) func(*orderbook.Offer) bool {
	resolved, _ := o.target.ResolvedAmount()
	noMinValue := o.target.AmountDenominated() || resolved == 0

	return func(offer *orderbook.Offer) bool {
		return offer.Balance.Tradable() >= amountTraded &&
			offer.BaseVolume > amountTraded*o.tuning.SkipMarginalOffers &&
			(noMinValue || amountTraded*offer.BasePrice > o.tuning.MinOfferValue)
	}
}
