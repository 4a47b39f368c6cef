package order

import (
	"math"
	"strconv"

	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/pricing"
)

// TradeOp is one manage-offer operation in submittable form. Buying and
// selling are venue asset identifiers (CODE:ISSUER, or the bare code for the
// venue base asset). Amount is the absolute selling amount at the venue's
// fixed 7-decimal precision.
type TradeOp struct {
	Buying  string           `json:"buying"`
	Selling string           `json:"selling"`
	Amount  string           `json:"amount"`
	Price   pricing.Rational `json:"price"`
}

// TradeOps converts the order's operations into submittable descriptors. A
// buy sells the quote asset for the base at the inverted price; a sell does
// the opposite at the offer's own price.
func (o *Order) TradeOps() []TradeOp {
	ops := o.Operations()
	out := make([]TradeOp, 0, len(ops))
	for _, op := range ops {
		out = append(out, operationToTradeOp(op))
	}
	return out
}

func operationToTradeOp(op Operation) TradeOp {
	balance := op.Offer.Balance.(*domain.Balance)
	base := balance.Asset().Code() + ":" + balance.Anchor().Address

	quote := "XLM"
	if balance.Book != nil && balance.Book.Quote() != nil {
		quote = balance.Book.Quote().Code()
	}

	var out TradeOp
	var amount float64
	if opDirection(op) == directionBuy {
		// Selling the quote asset: express the amount in quote units.
		amount = op.Amount * float64(op.Offer.PriceR.N) / float64(op.Offer.PriceR.D)
		out = TradeOp{Buying: base, Selling: quote, Price: op.Offer.PriceR.Invert()}
	} else {
		amount = op.Amount
		out = TradeOp{Buying: quote, Selling: base, Price: op.Offer.PriceR}
	}
	out.Amount = strconv.FormatFloat(math.Abs(amount), 'f', 7, 64)
	return out
}
