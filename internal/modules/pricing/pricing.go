// Package pricing converts floating prices into the bounded-precision
// rational representation required by the settlement protocol, and provides
// the spread transforms applied to offers before they are placed.
package pricing

import "math"

// maxDigits is the protocol limit for each side of a price rational:
// nine significant decimal digits.
const maxDigits = 999_999_999

// quantizeScale is the initial scaling factor applied to both terms of the
// price ratio before digit capping.
const quantizeScale = 1e10

// Rational is a bounded-precision fractional price. Both terms fit the
// protocol's nine-digit integer field.
type Rational struct {
	N int64 `json:"n"`
	D int64 `json:"d"`
}

// Invert swaps numerator and denominator. Used when expressing a buy as a
// sell of the counter asset.
func (r Rational) Invert() Rational {
	return Rational{N: r.D, D: r.N}
}

// Float returns the rational as a float64. Returns 0 for a zero denominator.
func (r Rational) Float() float64 {
	if r.D == 0 {
		return 0
	}
	return float64(r.N) / float64(r.D)
}

// Quantize converts a reference-currency price and its quote-asset price into
// a Rational approximating price/quotePrice. Both terms are scaled by 1e10,
// rounded, then repeatedly divided by 10 (rounding) until each fits nine
// digits. Always converges: each division strictly reduces magnitude.
func Quantize(price, quotePrice float64) Rational {
	n := math.Round(price * quantizeScale)
	d := math.Round(quotePrice * quantizeScale)

	for n > maxDigits || d > maxDigits {
		n = math.Round(n / 10)
		d = math.Round(d / 10)
	}

	return Rational{N: int64(n), D: int64(d)}
}

// Clamp limits value to the [min, max] range.
func Clamp(value, min, max float64) float64 {
	return math.Min(math.Max(value, min), max)
}

// ClampBid bounds a bid price to [ref*(1-spread), ref].
func ClampBid(price, refPrice, spread float64) float64 {
	return Clamp(price, refPrice*(1-spread), refPrice)
}

// ClampAsk bounds an ask price to [ref, ref*(1+spread)].
func ClampAsk(price, refPrice, spread float64) float64 {
	return Clamp(price, refPrice, refPrice*(1+spread))
}

// Round7 rounds to the venue's fixed 7-decimal precision. Used on every
// derived amount and running volume to avoid floating drift accumulation.
func Round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
