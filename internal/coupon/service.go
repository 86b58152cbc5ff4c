package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/scentmarket/internal/obs"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Querier captures the store methods required by the coupon service.
type Querier interface {
	GetByCode(ctx context.Context, code string) (Record, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, version int64) error
	InsertUsage(ctx context.Context, u Usage) error
	GetUsageByOrder(ctx context.Context, couponID, orderID uuid.UUID) (Usage, error)
}

// Service evaluates and settles coupons.
type Service struct {
	Q   Querier
	Now func() time.Time
}

// NormalizeCode canonicalises user input to the stored code form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Preview evaluates code against lines without mutating anything. Coupon
// rejections are reported in the result; only cart errors and lookups fail.
func (s *Service) Preview(ctx context.Context, code string, lines []pricing.Line) (pricing.CouponPreview, error) {
	if s == nil || s.Q == nil {
		return pricing.CouponPreview{}, errors.New("coupon service not configured")
	}
	code = NormalizeCode(code)
	if code == "" {
		return pricing.CouponPreview{}, ErrNotFound
	}
	rec, err := s.Q.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.ObserveCoupon("NOT_FOUND")
		}
		return pricing.CouponPreview{}, err
	}
	preview, err := pricing.PreviewCoupon(lines, rec.Coupon, s.now())
	if err != nil {
		return pricing.CouponPreview{}, err
	}
	if preview.Valid {
		obs.ObserveCoupon("valid")
	} else {
		obs.ObserveCoupon(preview.Reason)
	}
	return preview, nil
}

// Settle records that order redeemed the coupon for amount and increments its
// usage count exactly once. Calling it again for the same order is a no-op.
// A stale version yields ErrConflict so the caller can re-run its transaction.
func (s *Service) Settle(ctx context.Context, rec Record, orderID, userID uuid.UUID, amount decimal.Decimal) error {
	if s == nil || s.Q == nil {
		return errors.New("coupon service not configured")
	}
	if orderID == uuid.Nil {
		return errors.New("coupon: order id is required")
	}
	if _, err := s.Q.GetUsageByOrder(ctx, rec.ID, orderID); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := s.Q.IncrementUsage(ctx, rec.ID, rec.Version); err != nil {
		return err
	}
	err := s.Q.InsertUsage(ctx, Usage{
		CouponID:       rec.ID,
		OrderID:        orderID,
		UserID:         userID,
		DiscountAmount: pricing.NonNegative(amount),
	})
	if errors.Is(err, ErrAlreadySettled) {
		// A concurrent settle won between the lookup and the insert.
		return ErrConflict
	}
	return err
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
