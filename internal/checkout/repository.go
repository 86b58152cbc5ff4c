package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/scentmarket/internal/cart"
	"github.com/noah-isme/scentmarket/internal/coupon"
	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/loyalty"
	"github.com/noah-isme/scentmarket/internal/order"
)

// CartQueries reads and empties the caller's cart.
type CartQueries interface {
	LockCart(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ListItems(ctx context.Context, userID uuid.UUID) ([]cart.Item, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// CouponQueries loads coupons and settles their usage.
type CouponQueries interface {
	coupon.Querier
	GetByCodeForUpdate(ctx context.Context, code string) (coupon.Record, error)
}

// WalletQueries loads wallets and writes the coin ledger.
type WalletQueries interface {
	loyalty.LedgerQuerier
	GetWallet(ctx context.Context, userID uuid.UUID) (loyalty.WalletRecord, error)
}

// OrderWriter persists orders.
type OrderWriter interface {
	Insert(ctx context.Context, o order.Order) error
}

// Queries groups the stores bound to one connection or transaction.
type Queries struct {
	Cart    CartQueries
	Coupons CouponQueries
	Wallets WalletQueries
	Orders  OrderWriter
}

// Repository hands out store bundles for snapshot reads and for the
// committing transaction.
type Repository interface {
	Queries() Queries
	InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// PGRepository binds the pgx stores to a pool.
type PGRepository struct {
	DB interface {
		db.DBTX
		db.TxBeginner
	}
}

func queriesFor(conn db.DBTX) Queries {
	return Queries{
		Cart:    cart.Store{DB: conn},
		Coupons: coupon.Store{DB: conn},
		Wallets: loyalty.Store{DB: conn},
		Orders:  order.Store{DB: conn},
	}
}

// Queries returns stores running outside any transaction.
func (r PGRepository) Queries() Queries {
	return queriesFor(r.DB)
}

// InTx runs fn with stores bound to a single read-committed transaction.
func (r PGRepository) InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	return db.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(ctx, queriesFor(tx))
	})
}
