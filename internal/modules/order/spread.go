package order

import (
	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/orderbook"
	"github.com/aristath/equilibre/internal/modules/pricing"
)

// tightenSpread copies offer with its price shifted toward the opposite side
// by a fraction of the pair's spread, so the placed offer ranks first. When
// the asset carries a global price the shifted price is clamped to half the
// maximum allowed spread around it. The price rational is recomputed from
// the adjusted price. book is the native book the offer came from.
func (o *Order) tightenSpread(offer orderbook.Offer, book *orderbook.Book) orderbook.Offer {
	quotePrice := 0.0
	if q := book.Quote(); q != nil {
		quotePrice = q.Price()
	} else if offer.BasePrice != 0 {
		quotePrice = offer.Price / offer.BasePrice
	}

	diff := o.tuning.SpreadTightening * o.book.SpreadPct() / 100
	if offer.Side == orderbook.SideBids {
		offer.Price *= 1 + diff
	} else {
		offer.Price *= 1 - diff
	}

	if asset, ok := o.book.Base().(*domain.Asset); ok && asset.GlobalPrice() != 0 {
		halfSpread := o.tuning.MaxSpread / 2
		if offer.Side == orderbook.SideBids {
			offer.Price = pricing.ClampBid(offer.Price, asset.Price(), halfSpread)
		} else {
			offer.Price = pricing.ClampAsk(offer.Price, asset.Price(), halfSpread)
		}
	}

	offer.PriceR = pricing.Quantize(offer.Price, quotePrice)
	return offer
}
