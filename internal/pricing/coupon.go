package pricing

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType is the closed set of coupon discount strategies.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// ParseDiscountType converts a wire value into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	switch DiscountType(value) {
	case DiscountPercentage, DiscountFixed:
		return DiscountType(value), nil
	default:
		return "", fmt.Errorf("unsupported discount type %q", value)
	}
}

// Coupon is a read-only snapshot of a promotion as seen at evaluation time.
type Coupon struct {
	Code           string
	DiscountType   DiscountType
	DiscountValue  Money
	MinOrderAmount *Money
	MaxDiscount    *Money
	UsageLimit     *int
	UsageCount     int
	StartDate      time.Time
	EndDate        time.Time
	IsActive       bool
	VendorID       *uuid.UUID
}

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// ErrInvalidCoupon is returned by Check for malformed coupon definitions.
var ErrInvalidCoupon = errors.New("invalid coupon definition")

// Check validates the coupon definition itself. It is used when coupons are
// written, never during evaluation: the engine tolerates misconfiguration by
// clamping.
func (c Coupon) Check() error {
	if !couponCodePattern.MatchString(c.Code) {
		return fmt.Errorf("%w: code must be uppercase letters, digits, hyphen or underscore", ErrInvalidCoupon)
	}
	if _, err := ParseDiscountType(string(c.DiscountType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoupon, err)
	}
	if c.DiscountValue.IsNegative() {
		return fmt.Errorf("%w: discount value must not be negative", ErrInvalidCoupon)
	}
	if c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidCoupon)
	}
	if c.MinOrderAmount != nil && c.MinOrderAmount.IsNegative() {
		return fmt.Errorf("%w: minimum order amount must not be negative", ErrInvalidCoupon)
	}
	if c.MaxDiscount != nil && c.MaxDiscount.IsNegative() {
		return fmt.Errorf("%w: max discount must not be negative", ErrInvalidCoupon)
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		return fmt.Errorf("%w: usage limit must not be negative", ErrInvalidCoupon)
	}
	if c.UsageCount < 0 {
		return fmt.Errorf("%w: usage count must not be negative", ErrInvalidCoupon)
	}
	if !c.StartDate.Before(c.EndDate) {
		return fmt.Errorf("%w: start date must be before end date", ErrInvalidCoupon)
	}
	return nil
}

// ValidateCoupon checks the coupon against the order in a fixed order; the
// first failing check is returned.
func ValidateCoupon(c Coupon, orderAmount Money, now time.Time) error {
	if err := checkCouponState(c, now); err != nil {
		return err
	}
	return checkMinimum(c, orderAmount)
}

// checkCouponState runs the checks that do not depend on the cart.
func checkCouponState(c Coupon, now time.Time) error {
	if !c.IsActive {
		return couponError(ErrCouponInactive, c, "")
	}
	if now.Before(c.StartDate) {
		return couponError(ErrCouponNotYetActive, c, "starts "+c.StartDate.UTC().Format(time.RFC3339))
	}
	if now.After(c.EndDate) {
		return couponError(ErrCouponExpired, c, "ended "+c.EndDate.UTC().Format(time.RFC3339))
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return couponError(ErrCouponUsageExceeded, c, "")
	}
	return nil
}

func checkMinimum(c Coupon, orderAmount Money) error {
	if c.MinOrderAmount != nil && orderAmount.LessThan(*c.MinOrderAmount) {
		return couponError(ErrOrderBelowMinimum, c, "minimum "+Format(*c.MinOrderAmount))
	}
	return nil
}

// ComputeDiscount returns the discount for an order amount that already passed
// ValidateCoupon. The result never exceeds the order amount or the coupon cap.
func ComputeDiscount(c Coupon, orderAmount Money) Money {
	if !orderAmount.IsPositive() {
		return zero
	}
	var raw Money
	switch c.DiscountType {
	case DiscountPercentage:
		raw = orderAmount.Mul(c.DiscountValue).Div(hundred)
	case DiscountFixed:
		raw = c.DiscountValue
	default:
		return zero
	}
	discount := decimal.Min(raw, orderAmount)
	if c.MaxDiscount != nil {
		discount = decimal.Min(discount, *c.MaxDiscount)
	}
	return Round2(NonNegative(discount))
}

// EligibleSubtotal returns the base a coupon applies to: the whole cart for
// marketplace coupons, the vendor's own lines for vendor coupons.
func EligibleSubtotal(lines []Line, c Coupon) Money {
	total := zero
	for _, line := range lines {
		if c.VendorID != nil && (line.VendorID == nil || *line.VendorID != *c.VendorID) {
			continue
		}
		total = total.Add(line.UnitPrice.Mul(decimalFromInt(line.Qty)))
	}
	return Round2(total)
}

// resolveCoupon validates the coupon and returns the discount for the cart.
func resolveCoupon(lines []Line, subtotal Money, c Coupon, now time.Time) (Money, error) {
	if err := checkCouponState(c, now); err != nil {
		return zero, err
	}
	base := subtotal
	if c.VendorID != nil {
		base = EligibleSubtotal(lines, c)
		if !base.IsPositive() {
			return zero, couponError(ErrCouponNotApplicable, c, "no lines from vendor "+c.VendorID.String())
		}
	}
	if err := checkMinimum(c, base); err != nil {
		return zero, err
	}
	return ComputeDiscount(c, base), nil
}

func couponError(err error, c Coupon, detail string) *Error {
	if detail == "" {
		detail = c.Code
	} else {
		detail = c.Code + " " + detail
	}
	return stageError(StageCoupon, err, "coupon", -1, detail)
}
