package pricing

import "github.com/shopspring/decimal"

// Money is a currency amount. Amounts produced by the engine are rounded to cents.
type Money = decimal.Decimal

// currencyPlaces is the number of fractional digits kept on finalized amounts.
const currencyPlaces = 2

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Round2 rounds half-up to currency precision. decimal rounds half away from
// zero, which is half-up for the non-negative amounts handled here.
func Round2(d Money) Money {
	return d.Round(currencyPlaces)
}

// NonNegative clamps d at zero.
func NonNegative(d Money) Money {
	if d.IsNegative() {
		return zero
	}
	return d
}

// IsCurrencyPrecise reports whether d has no digits beyond currency precision.
func IsCurrencyPrecise(d Money) bool {
	return d.Equal(d.Round(currencyPlaces))
}

func decimalFromInt(n int) Money {
	return decimal.NewFromInt(int64(n))
}

// Format renders an amount with exactly two decimals, the wire format for money.
func Format(d Money) string {
	return d.StringFixed(currencyPlaces)
}
