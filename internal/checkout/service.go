package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/scentmarket/internal/cart"
	"github.com/noah-isme/scentmarket/internal/coupon"
	"github.com/noah-isme/scentmarket/internal/events"
	"github.com/noah-isme/scentmarket/internal/lock"
	"github.com/noah-isme/scentmarket/internal/loyalty"
	"github.com/noah-isme/scentmarket/internal/obs"
	"github.com/noah-isme/scentmarket/internal/order"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

var (
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrConflict is returned when concurrent updates kept invalidating the
	// snapshot for every attempt.
	ErrConflict = errors.New("checkout conflicted with a concurrent update")
)

// Request carries the shopper's choices for a checkout.
type Request struct {
	CouponCode  string
	RedeemCoins int64
	Gift        pricing.GiftOption
}

// Quote is a dry-run price breakdown of the caller's cart.
type Quote struct {
	Items  []cart.Item
	Totals pricing.Totals
}

// Locker serialises work per key. lock.Locker implements it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events. *events.Bus implements it.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Service prices carts and turns them into orders.
type Service struct {
	Repo        Repository
	Locker      Locker
	LockTTL     time.Duration
	Bus         Emitter
	Policy      pricing.Policy
	Currency    string
	MaxAttempts int
	Now         func() time.Time
	Log         zerolog.Logger
}

// Quote prices the caller's current cart without taking locks or writing.
func (s *Service) Quote(ctx context.Context, userID uuid.UUID, req Request) (Quote, error) {
	if s == nil || s.Repo == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	q := s.Repo.Queries()
	items, err := q.Cart.ListItems(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	var rec *coupon.Record
	if code := coupon.NormalizeCode(req.CouponCode); code != "" {
		r, err := q.Coupons.GetByCode(ctx, code)
		if err != nil {
			return Quote{}, err
		}
		rec = &r
	}
	var wallet loyalty.WalletRecord
	if req.RedeemCoins > 0 {
		if wallet, err = q.Wallets.GetWallet(ctx, userID); err != nil {
			return Quote{}, err
		}
	}
	totals, err := pricing.Compose(s.input(items, rec, wallet, req), s.Policy)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Items: items, Totals: totals}, nil
}

// Create re-prices the cart inside one transaction that persists the order,
// settles the coupon, debits redeemed coins and empties the cart. A version
// conflict re-runs the whole transaction; engine rejections never retry.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req Request) (order.Order, error) {
	if s == nil || s.Repo == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	var created order.Order
	run := func(ctx context.Context) error {
		o, err := s.createWithRetry(ctx, userID, req)
		created = o
		return err
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, lock.CheckoutKey(userID), s.lockTTL(), run)
	} else {
		err = run(ctx)
	}
	obs.ObserveCheckout(outcome(err))
	if err != nil {
		return order.Order{}, err
	}

	if s.Bus != nil {
		payload := events.OrderCreated{
			OrderID:    created.ID,
			UserID:     created.UserID,
			Total:      pricing.Format(created.Totals.Total),
			Currency:   created.Currency,
			CouponCode: created.Totals.CouponCode,
			CoinsUsed:  created.Totals.CoinsUsed,
		}
		if _, emitErr := s.Bus.Emit(ctx, events.TopicOrderCreated, created.ID, payload); emitErr != nil {
			s.Log.Error().Err(emitErr).Str("order_id", created.ID.String()).Msg("emit order.created")
		}
	}
	return created, nil
}

func (s *Service) createWithRetry(ctx context.Context, userID uuid.UUID, req Request) (order.Order, error) {
	attempts := s.maxAttempts()
	for attempt := 1; ; attempt++ {
		o, err := s.createOnce(ctx, userID, req)
		if err == nil {
			return o, nil
		}
		if !isConflict(err) {
			return order.Order{}, err
		}
		if attempt >= attempts {
			return order.Order{}, fmt.Errorf("%w after %d attempts: %v", ErrConflict, attempt, err)
		}
		obs.ObserveCheckoutRetry()
		s.Log.Warn().Err(err).Int("attempt", attempt).Str("user_id", userID.String()).Msg("checkout conflict, retrying")
		if err := ctx.Err(); err != nil {
			return order.Order{}, err
		}
	}
}

func (s *Service) createOnce(ctx context.Context, userID uuid.UUID, req Request) (order.Order, error) {
	var created order.Order
	err := s.Repo.InTx(ctx, func(ctx context.Context, q Queries) error {
		cartID, err := q.Cart.LockCart(ctx, userID)
		if errors.Is(err, cart.ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}
		items, err := q.Cart.ListItems(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		var rec *coupon.Record
		if code := coupon.NormalizeCode(req.CouponCode); code != "" {
			r, err := q.Coupons.GetByCodeForUpdate(ctx, code)
			if err != nil {
				return err
			}
			rec = &r
		}
		var wallet loyalty.WalletRecord
		if req.RedeemCoins > 0 {
			if wallet, err = q.Wallets.GetWalletForUpdate(ctx, userID); err != nil {
				return err
			}
		}

		totals, err := pricing.Compose(s.input(items, rec, wallet, req), s.Policy)
		if err != nil {
			return err
		}

		o := order.Order{
			ID:       uuid.New(),
			UserID:   userID,
			Status:   order.StatusPendingPayment,
			Currency: s.Currency,
			Totals:   totals,
			Gift:     req.Gift,
			Items:    orderItems(items),
		}
		if err := q.Orders.Insert(ctx, o); err != nil {
			return err
		}
		if rec != nil {
			svc := coupon.Service{Q: q.Coupons, Now: s.Now}
			if err := svc.Settle(ctx, *rec, o.ID, userID, totals.DiscountAmount); err != nil {
				return err
			}
		}
		if err := (loyalty.Ledger{Q: q.Wallets}).Debit(ctx, wallet, o.ID, totals.CoinsUsed); err != nil {
			return err
		}
		if err := q.Cart.Clear(ctx, cartID); err != nil {
			return err
		}
		created = o
		return nil
	})
	return created, err
}

func (s *Service) input(items []cart.Item, rec *coupon.Record, wallet loyalty.WalletRecord, req Request) pricing.Input {
	in := pricing.Input{
		Lines:       cart.Lines(items),
		RedeemCoins: req.RedeemCoins,
		Wallet:      wallet.Wallet,
		Gift:        req.Gift,
		Now:         s.now(),
	}
	if rec != nil {
		c := rec.Coupon
		in.Coupon = &c
	}
	return in
}

func orderItems(items []cart.Item) []order.Item {
	out := make([]order.Item, 0, len(items))
	for _, it := range items {
		out = append(out, order.Item{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			VendorID:  it.VendorID,
			Title:     it.Title,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			Subtotal:  pricing.LineSubtotal(it.Qty, it.UnitPrice),
		})
	}
	return out
}

func isConflict(err error) bool {
	return errors.Is(err, coupon.ErrConflict) || errors.Is(err, loyalty.ErrConflict)
}

func outcome(err error) string {
	var perr *pricing.Error
	switch {
	case err == nil:
		return "created"
	case errors.As(err, &perr), errors.Is(err, ErrEmptyCart), errors.Is(err, coupon.ErrNotFound):
		return "rejected"
	case errors.Is(err, ErrConflict), errors.Is(err, lock.ErrNotAcquired):
		return "conflict"
	default:
		return "error"
	}
}

func (s *Service) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return 3
	}
	return s.MaxAttempts
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
