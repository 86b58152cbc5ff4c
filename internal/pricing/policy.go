package pricing

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("invalid pricing policy")

// Policy carries the externally configured pricing parameters.
// FlatShippingFee and GiftFees have no defaults; Validate rejects them when unset.
type Policy struct {
	TaxRate               Money
	FreeShippingThreshold Money
	FlatShippingFee       *Money
	CoinValue             Money
	CoinsEarnRate         Money
	MaxRedemptionFraction Money
	GiftFees              GiftFees
}

// Validate rejects configurations the engine cannot price with.
func (p Policy) Validate() error {
	switch {
	case p.TaxRate.IsNegative():
		return fmt.Errorf("%w: tax rate must not be negative", ErrInvalidPolicy)
	case p.FreeShippingThreshold.IsNegative():
		return fmt.Errorf("%w: free shipping threshold must not be negative", ErrInvalidPolicy)
	case p.FlatShippingFee == nil:
		return fmt.Errorf("%w: flat shipping fee is required", ErrInvalidPolicy)
	case p.FlatShippingFee.IsNegative():
		return fmt.Errorf("%w: flat shipping fee must not be negative", ErrInvalidPolicy)
	case !p.CoinValue.IsPositive():
		return fmt.Errorf("%w: coin value must be positive", ErrInvalidPolicy)
	case !IsCurrencyPrecise(p.CoinValue):
		return fmt.Errorf("%w: coin value must not exceed currency precision", ErrInvalidPolicy)
	case p.CoinsEarnRate.IsNegative():
		return fmt.Errorf("%w: coins earn rate must not be negative", ErrInvalidPolicy)
	case p.MaxRedemptionFraction.IsNegative() || p.MaxRedemptionFraction.GreaterThan(decimalFromInt(1)):
		return fmt.Errorf("%w: max redemption fraction must be between 0 and 1", ErrInvalidPolicy)
	case len(p.GiftFees) == 0:
		return fmt.Errorf("%w: gift fee table is required", ErrInvalidPolicy)
	}
	for tier, fee := range p.GiftFees {
		if _, err := ParseWrapTier(string(tier)); err != nil || tier == WrapNone {
			return fmt.Errorf("%w: unknown gift tier %q", ErrInvalidPolicy, tier)
		}
		if fee.IsNegative() {
			return fmt.Errorf("%w: gift fee for %s must not be negative", ErrInvalidPolicy, tier)
		}
	}
	return nil
}

func (p Policy) flatFee() Money {
	if p.FlatShippingFee == nil {
		return zero
	}
	return *p.FlatShippingFee
}
