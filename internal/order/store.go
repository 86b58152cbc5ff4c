package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusConfirmed      Status = "CONFIRMED"
)

var (
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidState is returned when a transition is not allowed from the current status.
	ErrInvalidState = errors.New("order state transition not allowed")
)

// Item is a line of an order, frozen at checkout.
type Item struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	VendorID  *uuid.UUID
	Title     string
	Qty       int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Order is a persisted checkout with the full price breakdown.
type Order struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Status    Status
	Currency  string
	Totals    pricing.Totals
	Gift      pricing.GiftOption
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store reads and writes orders. DB may be a pool or a transaction.
type Store struct {
	DB db.DBTX
}

// Insert persists the order and its items. Callers run it inside the
// transaction that also settles coupons and wallets.
func (s Store) Insert(ctx context.Context, o Order) error {
	t := o.Totals
	_, err := s.DB.Exec(ctx, `
INSERT INTO orders (id, user_id, status, currency, coupon_code, subtotal, discount_amount, coins_used,
	coin_value_applied, tax_amount, shipping_fee, gift_fee, coins_earned, total,
	is_gift, gift_wrap_tier, gift_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.UserID, string(o.Status), o.Currency, nullText(t.CouponCode), t.Subtotal, t.DiscountAmount, t.CoinsUsed,
		t.CoinValueApplied, t.TaxAmount, t.ShippingFee, t.GiftFee, t.CoinsEarned, t.Total,
		o.Gift.IsGift, nullText(string(o.Gift.WrapTier)), nullText(o.Gift.Message))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(`
INSERT INTO order_items (id, order_id, product_id, variant_id, vendor_id, title, qty, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New(), o.ID, it.ProductID, it.VariantID, it.VendorID, it.Title, it.Qty, it.UnitPrice, it.Subtotal)
	}
	if batch.Len() == 0 {
		return nil
	}
	if sender, ok := s.DB.(batchSender); ok {
		if err := sender.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	}
	for _, q := range batch.QueuedQueries {
		if _, err := s.DB.Exec(ctx, q.SQL, q.Arguments...); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const orderColumns = `id, user_id, status, currency, coupon_code, subtotal, discount_amount, coins_used,
coin_value_applied, tax_amount, shipping_fee, gift_fee, coins_earned, total,
is_gift, gift_wrap_tier, gift_message, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	var coupon, wrapTier, message pgtype.Text
	t := &o.Totals
	err := row.Scan(&o.ID, &o.UserID, &status, &o.Currency, &coupon, &t.Subtotal, &t.DiscountAmount, &t.CoinsUsed,
		&t.CoinValueApplied, &t.TaxAmount, &t.ShippingFee, &t.GiftFee, &t.CoinsEarned, &t.Total,
		&o.Gift.IsGift, &wrapTier, &message, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	t.CouponCode = coupon.String
	o.Gift.WrapTier = pricing.WrapTier(wrapTier.String)
	o.Gift.Message = message.String
	return o, nil
}

// Get loads an order with its items.
func (s Store) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	rows, err := s.DB.Query(ctx, `
SELECT product_id, variant_id, vendor_id, title, qty, unit_price, subtotal
FROM order_items WHERE order_id = $1 ORDER BY title, id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.VendorID, &it.Title, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
		o.Totals.ItemCount += it.Qty
	}
	return o, rows.Err()
}

// Confirm moves a pending order to CONFIRMED.
func (s Store) Confirm(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING `+orderColumns, id, string(StatusConfirmed), string(StatusPendingPayment)))
	if err == nil {
		return o, nil
	}
	if !db.IsNoRows(err) {
		return Order{}, fmt.Errorf("confirm order: %w", err)
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Order{}, fmt.Errorf("confirm order: %w", err)
	}
	if !exists {
		return Order{}, ErrNotFound
	}
	return Order{}, ErrInvalidState
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
