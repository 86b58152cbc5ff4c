package pricing

import "time"

// Input is the full snapshot priced by Compose.
type Input struct {
	Lines       []Line
	Coupon      *Coupon
	RedeemCoins int64
	Wallet      Wallet
	Gift        GiftOption
	Now         time.Time
}

// Totals is the auditable breakdown of an order.
// Total = Subtotal - DiscountAmount - CoinValueApplied + TaxAmount + ShippingFee + GiftFee.
type Totals struct {
	Subtotal         Money
	ItemCount        int
	CouponCode       string
	DiscountAmount   Money
	CoinsUsed        int64
	CoinValueApplied Money
	TaxAmount        Money
	ShippingFee      Money
	GiftFee          Money
	CoinsEarned      int64
	Total            Money
}

// DiscountedSubtotal is the subtotal after the coupon discount.
func (t Totals) DiscountedSubtotal() Money {
	return NonNegative(t.Subtotal.Sub(t.DiscountAmount))
}

// CashPayable is the discounted subtotal not covered by coins.
func (t Totals) CashPayable() Money {
	return NonNegative(t.DiscountedSubtotal().Sub(t.CoinValueApplied))
}

// Compose prices the input in a fixed sequence of stages and stops at the
// first failing stage. The policy is expected to have passed Validate.
// Compose has no side effects; identical inputs give identical totals.
func Compose(in Input, p Policy) (Totals, error) {
	cart, err := Aggregate(in.Lines)
	if err != nil {
		return Totals{}, err
	}
	totals := Totals{Subtotal: cart.Subtotal, ItemCount: cart.ItemCount}

	if in.Coupon != nil {
		discount, err := resolveCoupon(in.Lines, cart.Subtotal, *in.Coupon, in.Now)
		if err != nil {
			return Totals{}, err
		}
		totals.CouponCode = in.Coupon.Code
		totals.DiscountAmount = discount
	}
	discounted := totals.DiscountedSubtotal()

	if in.RedeemCoins > 0 {
		totals.CoinsUsed = RedeemCoins(in.RedeemCoins, in.Wallet.Balance, discounted, p.MaxRedemptionFraction, p.CoinValue)
		totals.CoinValueApplied = CoinValue(totals.CoinsUsed, p.CoinValue)
	}
	cash := totals.CashPayable()

	totals.TaxAmount = Tax(discounted, p.TaxRate)
	totals.ShippingFee = Shipping(discounted, p.FreeShippingThreshold, p.flatFee())

	totals.GiftFee, err = p.GiftFees.Fee(in.Gift)
	if err != nil {
		return Totals{}, err
	}

	totals.Total = NonNegative(Round2(cash.Add(totals.TaxAmount).Add(totals.ShippingFee).Add(totals.GiftFee)))
	totals.CoinsEarned = EarnCoins(cash, p.CoinsEarnRate)
	return totals, nil
}
