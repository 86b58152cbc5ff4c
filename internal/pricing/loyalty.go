package pricing

import "github.com/shopspring/decimal"

// Wallet is a snapshot of a user's loyalty coin balance.
type Wallet struct {
	Balance        int64
	LifetimeEarned int64
	LifetimeSpent  int64
}

// RedeemCoins clamps a redemption request to the wallet balance and to the
// share of the discounted subtotal that coins may cover. Over-requests are
// clamped, never rejected.
func RedeemCoins(requested, balance int64, discountedSubtotal, maxFraction, coinValue Money) int64 {
	if requested <= 0 || balance <= 0 || !coinValue.IsPositive() {
		return 0
	}
	if !discountedSubtotal.IsPositive() || !maxFraction.IsPositive() {
		return 0
	}
	coins := requested
	if balance < coins {
		coins = balance
	}
	byPolicy := discountedSubtotal.Mul(maxFraction).Div(coinValue).Floor()
	if byPolicy.LessThan(decimal.NewFromInt(coins)) {
		coins = byPolicy.IntPart()
	}
	if coins < 0 {
		return 0
	}
	return coins
}

// CoinValue converts a coin count into a currency amount.
func CoinValue(coins int64, coinValue Money) Money {
	if coins <= 0 {
		return zero
	}
	return Round2(decimal.NewFromInt(coins).Mul(coinValue))
}

// EarnCoins returns the coins earned on the cash-payable amount before tax.
func EarnCoins(cashPayable, earnRate Money) int64 {
	if !cashPayable.IsPositive() || !earnRate.IsPositive() {
		return 0
	}
	return cashPayable.Mul(earnRate).Floor().IntPart()
}
