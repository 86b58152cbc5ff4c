package pricing

// Tax is charged on the discounted subtotal; coin redemption does not reduce the base.
func Tax(discountedSubtotal, rate Money) Money {
	if !discountedSubtotal.IsPositive() || !rate.IsPositive() {
		return zero
	}
	return Round2(discountedSubtotal.Mul(rate))
}

// Shipping is free once the discounted subtotal reaches the threshold.
func Shipping(discountedSubtotal, threshold, flatFee Money) Money {
	if discountedSubtotal.GreaterThanOrEqual(threshold) {
		return zero
	}
	return Round2(NonNegative(flatFee))
}
