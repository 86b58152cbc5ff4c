package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity is returned when a cart line has a quantity below one.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidPrice is returned when a cart line carries a negative unit price.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrCouponInactive is returned when the coupon has been switched off.
	ErrCouponInactive = errors.New("coupon inactive")
	// ErrCouponNotYetActive is returned when the coupon window has not opened yet.
	ErrCouponNotYetActive = errors.New("coupon not yet active")
	// ErrCouponExpired is returned when the coupon window has closed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageExceeded is returned when the coupon has no redemptions left.
	ErrCouponUsageExceeded = errors.New("coupon usage exceeded")
	// ErrOrderBelowMinimum is returned when the order does not reach the coupon minimum.
	ErrOrderBelowMinimum = errors.New("order below coupon minimum")
	// ErrCouponNotApplicable is returned when a vendor coupon matches no cart line.
	ErrCouponNotApplicable = errors.New("coupon not applicable to cart")
	// ErrGiftMessageTooLong is returned when the gift message exceeds the character limit.
	ErrGiftMessageTooLong = errors.New("gift message too long")
	// ErrMissingGiftTier is returned when a gift has no wrap tier.
	ErrMissingGiftTier = errors.New("gift wrap tier required")
	// ErrUnknownGiftTier is returned when the wrap tier has no configured fee.
	ErrUnknownGiftTier = errors.New("unknown gift wrap tier")
)

// Stage identifies the pipeline step that rejected the input.
type Stage string

const (
	StageCart    Stage = "cart"
	StageCoupon  Stage = "coupon"
	StageLoyalty Stage = "loyalty"
	StageGift    Stage = "gift"
)

// Error carries the failing stage and input alongside one of the sentinel errors above.
type Error struct {
	Stage  Stage
	Err    error
	Field  string
	Index  int
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Err)
	if e.Field != "" {
		if e.Index >= 0 {
			msg = fmt.Sprintf("%s (%s[%d])", msg, e.Field, e.Index)
		} else {
			msg = fmt.Sprintf("%s (%s)", msg, e.Field)
		}
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the sentinel so errors.Is matches on the error kind.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Code returns a stable upper-snake identifier for the error kind.
func (e *Error) Code() string {
	if e == nil {
		return ""
	}
	return Code(e.Err)
}

// Code maps a pricing error to its stable identifier. Unknown errors map to an empty string.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, ErrInvalidPrice):
		return "INVALID_PRICE"
	case errors.Is(err, ErrCouponInactive):
		return "COUPON_INACTIVE"
	case errors.Is(err, ErrCouponNotYetActive):
		return "COUPON_NOT_YET_ACTIVE"
	case errors.Is(err, ErrCouponExpired):
		return "COUPON_EXPIRED"
	case errors.Is(err, ErrCouponUsageExceeded):
		return "COUPON_USAGE_EXCEEDED"
	case errors.Is(err, ErrOrderBelowMinimum):
		return "ORDER_BELOW_MINIMUM"
	case errors.Is(err, ErrCouponNotApplicable):
		return "COUPON_NOT_APPLICABLE"
	case errors.Is(err, ErrGiftMessageTooLong):
		return "GIFT_MESSAGE_TOO_LONG"
	case errors.Is(err, ErrMissingGiftTier):
		return "MISSING_GIFT_TIER"
	case errors.Is(err, ErrUnknownGiftTier):
		return "UNKNOWN_GIFT_TIER"
	default:
		return ""
	}
}

func stageError(stage Stage, err error, field string, index int, detail string) *Error {
	return &Error{Stage: stage, Err: err, Field: field, Index: index, Detail: detail}
}
