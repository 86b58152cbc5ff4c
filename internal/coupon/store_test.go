package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// usageDB mimics a PostgreSQL transaction where a constraint violation aborts
// every later statement.
type usageDB struct {
	usages  map[string]bool
	aborted bool
}

func (d *usageDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if d.aborted {
		return pgconn.CommandTag{}, errors.New("current transaction is aborted")
	}
	if strings.Contains(sql, "coupon_usages") {
		key := fmt.Sprint(args[1], args[2])
		if d.usages[key] {
			if strings.Contains(sql, "ON CONFLICT") {
				return pgconn.NewCommandTag("INSERT 0 0"), nil
			}
			d.aborted = true
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
		}
		d.usages[key] = true
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (d *usageDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (d *usageDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func TestStoreInsertUsageRepeatKeepsTxUsable(t *testing.T) {
	db := &usageDB{usages: map[string]bool{}}
	store := Store{DB: db}
	u := Usage{CouponID: uuid.New(), OrderID: uuid.New(), UserID: uuid.New(), DiscountAmount: decimal.RequireFromString("10.00")}

	require.NoError(t, store.InsertUsage(context.Background(), u))
	require.ErrorIs(t, store.InsertUsage(context.Background(), u), ErrAlreadySettled)
	require.False(t, db.aborted)
	require.NoError(t, store.IncrementUsage(context.Background(), u.CouponID, 1))
}
