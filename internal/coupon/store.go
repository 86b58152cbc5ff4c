package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

var (
	// ErrNotFound is returned when no coupon has the requested code.
	ErrNotFound = errors.New("coupon not found")
	// ErrConflict signals that the coupon row changed since it was read.
	ErrConflict = errors.New("coupon modified concurrently")
	// ErrDuplicateCode is returned when creating a coupon whose code exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrAlreadySettled is returned when usage was already recorded for an order.
	ErrAlreadySettled = errors.New("coupon usage already recorded")
)

// Record is a stored coupon together with its row identity and version.
type Record struct {
	ID        uuid.UUID
	Version   int64
	Coupon    pricing.Coupon
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usage records one redemption of a coupon by an order.
type Usage struct {
	ID             uuid.UUID
	CouponID       uuid.UUID
	OrderID        uuid.UUID
	UserID         uuid.UUID
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// Store reads and writes coupons. DB may be a pool or a transaction.
type Store struct {
	DB db.DBTX
}

const couponColumns = `id, version, code, discount_type, discount_value, min_order_amount, max_discount,
usage_limit, usage_count, start_date, end_date, is_active, vendor_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		kind       string
		minOrder   decimal.NullDecimal
		maxDisc    decimal.NullDecimal
		usageLimit pgtype.Int4
	)
	c := &rec.Coupon
	if err := row.Scan(&rec.ID, &rec.Version, &c.Code, &kind, &c.DiscountValue, &minOrder, &maxDisc,
		&usageLimit, &c.UsageCount, &c.StartDate, &c.EndDate, &c.IsActive, &c.VendorID,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	c.DiscountType = pricing.DiscountType(kind)
	if minOrder.Valid {
		c.MinOrderAmount = &minOrder.Decimal
	}
	if maxDisc.Valid {
		c.MaxDiscount = &maxDisc.Decimal
	}
	if usageLimit.Valid {
		limit := int(usageLimit.Int32)
		c.UsageLimit = &limit
	}
	return rec, nil
}

func (s Store) getByCode(ctx context.Context, code string, forUpdate bool) (Record, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	rec, err := scanRecord(s.DB.QueryRow(ctx, q, code))
	if err != nil {
		if db.IsNoRows(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get coupon: %w", err)
	}
	return rec, nil
}

// GetByCode loads a coupon without locking it.
func (s Store) GetByCode(ctx context.Context, code string) (Record, error) {
	return s.getByCode(ctx, code, false)
}

// GetByCodeForUpdate loads a coupon and locks its row until the transaction ends.
func (s Store) GetByCodeForUpdate(ctx context.Context, code string) (Record, error) {
	return s.getByCode(ctx, code, true)
}

// Create inserts a coupon definition.
func (s Store) Create(ctx context.Context, c pricing.Coupon) (Record, error) {
	q := `
INSERT INTO coupons (id, code, discount_type, discount_value, min_order_amount, max_discount,
	usage_limit, usage_count, start_date, end_date, is_active, vendor_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + couponColumns
	rec, err := scanRecord(s.DB.QueryRow(ctx, q, uuid.New(), c.Code, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount, c.MaxDiscount, c.UsageLimit, c.UsageCount, c.StartDate, c.EndDate, c.IsActive, c.VendorID))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Record{}, ErrDuplicateCode
		}
		return Record{}, fmt.Errorf("create coupon: %w", err)
	}
	return rec, nil
}

// Update replaces the definition of the coupon identified by code. Usage
// counters are never touched here.
func (s Store) Update(ctx context.Context, code string, c pricing.Coupon) (Record, error) {
	q := `
UPDATE coupons SET discount_type = $2, discount_value = $3, min_order_amount = $4, max_discount = $5,
	usage_limit = $6, start_date = $7, end_date = $8, is_active = $9, vendor_id = $10,
	version = version + 1, updated_at = now()
WHERE code = $1
RETURNING ` + couponColumns
	rec, err := scanRecord(s.DB.QueryRow(ctx, q, code, string(c.DiscountType), c.DiscountValue,
		c.MinOrderAmount, c.MaxDiscount, c.UsageLimit, c.StartDate, c.EndDate, c.IsActive, c.VendorID))
	if err != nil {
		if db.IsNoRows(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("update coupon: %w", err)
	}
	return rec, nil
}

// List returns a page of coupons ordered by creation time and the total count.
func (s Store) List(ctx context.Context, limit, offset int) ([]Record, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}
	rows, err := s.DB.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC, code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// IncrementUsage bumps usage_count when the row still carries version.
func (s Store) IncrementUsage(ctx context.Context, id uuid.UUID, version int64) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE coupons SET usage_count = usage_count + 1, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// InsertUsage records a redemption; one per coupon and order. A repeat yields
// ErrAlreadySettled and leaves the surrounding transaction usable.
func (s Store) InsertUsage(ctx context.Context, u Usage) error {
	tag, err := s.DB.Exec(ctx, `
INSERT INTO coupon_usages (id, coupon_id, order_id, user_id, discount_amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (coupon_id, order_id) DO NOTHING`, uuid.New(), u.CouponID, u.OrderID, u.UserID, u.DiscountAmount)
	if err != nil {
		return fmt.Errorf("insert coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadySettled
	}
	return nil
}

// GetUsageByOrder returns the usage recorded for an order, or ErrNotFound.
func (s Store) GetUsageByOrder(ctx context.Context, couponID, orderID uuid.UUID) (Usage, error) {
	var u Usage
	err := s.DB.QueryRow(ctx, `
SELECT id, coupon_id, order_id, user_id, discount_amount, used_at
FROM coupon_usages WHERE coupon_id = $1 AND order_id = $2`, couponID, orderID).
		Scan(&u.ID, &u.CouponID, &u.OrderID, &u.UserID, &u.DiscountAmount, &u.UsedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Usage{}, ErrNotFound
		}
		return Usage{}, fmt.Errorf("get coupon usage: %w", err)
	}
	return u, nil
}
