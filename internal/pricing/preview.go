package pricing

import (
	"errors"
	"time"
)

// CouponPreview is the result of trying a coupon against a cart without committing.
type CouponPreview struct {
	Code           string
	Valid          bool
	Reason         string
	Err            error
	Subtotal       Money
	DiscountAmount Money
	FinalAmount    Money
}

// PreviewCoupon evaluates c against the cart. Cart errors are returned; a
// rejected coupon is reported in the result with Valid false.
func PreviewCoupon(lines []Line, c Coupon, now time.Time) (CouponPreview, error) {
	cart, err := Aggregate(lines)
	if err != nil {
		return CouponPreview{}, err
	}
	preview := CouponPreview{
		Code:           c.Code,
		Subtotal:       cart.Subtotal,
		DiscountAmount: zero,
		FinalAmount:    cart.Subtotal,
	}
	discount, err := resolveCoupon(lines, cart.Subtotal, c, now)
	if err != nil {
		var perr *Error
		if !errors.As(err, &perr) {
			return CouponPreview{}, err
		}
		preview.Reason = perr.Code()
		preview.Err = perr
		return preview, nil
	}
	preview.Valid = true
	preview.DiscountAmount = discount
	preview.FinalAmount = NonNegative(cart.Subtotal.Sub(discount))
	return preview, nil
}
