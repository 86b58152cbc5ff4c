package loyalty

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/scentmarket/internal/obs"
)

// LedgerQuerier is the store surface the ledger writes through.
type LedgerQuerier interface {
	GetWalletForUpdate(ctx context.Context, userID uuid.UUID) (WalletRecord, error)
	DebitWallet(ctx context.Context, userID uuid.UUID, coins, version int64) error
	CreditWallet(ctx context.Context, userID uuid.UUID, coins int64) error
	InsertTransaction(ctx context.Context, tx Transaction) error
}

// Ledger applies coin movements decided by the pricing engine. Each movement
// is recorded once per order; repeats are no-ops.
type Ledger struct {
	Q LedgerQuerier
}

// Debit redeems coins from a wallet read earlier in the same transaction.
// A stale version yields ErrConflict.
func (l Ledger) Debit(ctx context.Context, w WalletRecord, orderID uuid.UUID, coins int64) error {
	if coins <= 0 {
		return nil
	}
	if l.Q == nil {
		return errors.New("loyalty ledger not configured")
	}
	err := l.Q.InsertTransaction(ctx, Transaction{UserID: w.UserID, OrderID: orderID, Kind: KindRedeem, Coins: coins})
	if errors.Is(err, ErrAlreadyApplied) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := l.Q.DebitWallet(ctx, w.UserID, coins, w.Version); err != nil {
		return err
	}
	obs.ObserveCoins("redeemed", coins)
	return nil
}

// Credit adds earned coins for a confirmed order. It reports whether the
// credit was applied by this call.
func (l Ledger) Credit(ctx context.Context, userID, orderID uuid.UUID, coins int64) (bool, error) {
	if coins <= 0 {
		return false, nil
	}
	if l.Q == nil {
		return false, errors.New("loyalty ledger not configured")
	}
	if _, err := l.Q.GetWalletForUpdate(ctx, userID); err != nil {
		return false, err
	}
	err := l.Q.InsertTransaction(ctx, Transaction{UserID: userID, OrderID: orderID, Kind: KindEarn, Coins: coins})
	if errors.Is(err, ErrAlreadyApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := l.Q.CreditWallet(ctx, userID, coins); err != nil {
		return false, err
	}
	obs.ObserveCoins("earned", coins)
	return true, nil
}
