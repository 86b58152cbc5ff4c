package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// txDB mimics a PostgreSQL transaction: a constraint violation aborts it and
// every later statement fails.
type txDB struct {
	entries map[string]bool
	aborted bool
	credits int
}

func newTxDB() *txDB { return &txDB{entries: map[string]bool{}} }

func (d *txDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if d.aborted {
		return pgconn.CommandTag{}, errors.New("current transaction is aborted")
	}
	switch {
	case strings.Contains(sql, "wallet_transactions"):
		key := fmt.Sprint(args[2], args[3])
		if d.entries[key] {
			if strings.Contains(sql, "ON CONFLICT") {
				return pgconn.NewCommandTag("INSERT 0 0"), nil
			}
			d.aborted = true
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
		}
		d.entries[key] = true
	case strings.Contains(sql, "lifetime_earned + EXCLUDED"):
		d.credits++
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (d *txDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (d *txDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	return walletRow{userID: args[0].(uuid.UUID), aborted: d.aborted}
}

type walletRow struct {
	userID  uuid.UUID
	aborted bool
}

func (r walletRow) Scan(dest ...any) error {
	if r.aborted {
		return errors.New("current transaction is aborted")
	}
	for _, d := range dest {
		switch v := d.(type) {
		case *uuid.UUID:
			*v = r.userID
		case *int64:
			*v = 1
		}
	}
	return nil
}

func TestStoreInsertTransactionRepeatKeepsTxUsable(t *testing.T) {
	db := newTxDB()
	store := Store{DB: db}
	entry := Transaction{UserID: uuid.New(), OrderID: uuid.New(), Kind: KindEarn, Coins: 5}

	require.NoError(t, store.InsertTransaction(context.Background(), entry))
	require.ErrorIs(t, store.InsertTransaction(context.Background(), entry), ErrAlreadyApplied)
	require.False(t, db.aborted)
	require.NoError(t, store.CreditWallet(context.Background(), entry.UserID, 1))
}

func TestLedgerCreditRedeliveryOnStore(t *testing.T) {
	db := newTxDB()
	ledger := Ledger{Q: Store{DB: db}}
	userID, orderID := uuid.New(), uuid.New()

	applied, err := ledger.Credit(context.Background(), userID, orderID, 7)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = ledger.Credit(context.Background(), userID, orderID, 7)
	require.NoError(t, err)
	require.False(t, applied)
	require.False(t, db.aborted)
	require.Equal(t, 1, db.credits)
}
