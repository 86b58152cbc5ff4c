package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

var (
	// ErrConflict signals that the wallet changed since it was read.
	ErrConflict = errors.New("wallet modified concurrently")
	// ErrAlreadyApplied is returned when a ledger entry already exists for an order.
	ErrAlreadyApplied = errors.New("wallet transaction already applied")
)

// Kind distinguishes ledger entries.
type Kind string

const (
	KindRedeem Kind = "REDEEM"
	KindEarn   Kind = "EARN"
)

// WalletRecord is a stored wallet with its optimistic-lock version.
type WalletRecord struct {
	UserID  uuid.UUID
	Version int64
	Wallet  pricing.Wallet
}

// Transaction is a single ledger entry tied to an order.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	OrderID   uuid.UUID `json:"orderId"`
	Kind      Kind      `json:"kind"`
	Coins     int64     `json:"coins"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store reads and writes wallets. DB may be a pool or a transaction.
type Store struct {
	DB db.DBTX
}

const walletColumns = `user_id, version, balance, lifetime_earned, lifetime_spent`

func scanWallet(row interface{ Scan(...any) error }) (WalletRecord, error) {
	var w WalletRecord
	err := row.Scan(&w.UserID, &w.Version, &w.Wallet.Balance, &w.Wallet.LifetimeEarned, &w.Wallet.LifetimeSpent)
	return w, err
}

// GetWallet returns the user's wallet; users who never earned coins get an
// empty wallet with version 0.
func (s Store) GetWallet(ctx context.Context, userID uuid.UUID) (WalletRecord, error) {
	w, err := scanWallet(s.DB.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		if db.IsNoRows(err) {
			return WalletRecord{UserID: userID}, nil
		}
		return WalletRecord{}, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// GetWalletForUpdate locks the user's wallet row, creating it on first use.
func (s Store) GetWalletForUpdate(ctx context.Context, userID uuid.UUID) (WalletRecord, error) {
	if _, err := s.DB.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return WalletRecord{}, fmt.Errorf("create wallet: %w", err)
	}
	w, err := scanWallet(s.DB.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return WalletRecord{}, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

// DebitWallet removes coins when the row still carries version and holds enough balance.
func (s Store) DebitWallet(ctx context.Context, userID uuid.UUID, coins, version int64) error {
	tag, err := s.DB.Exec(ctx, `
UPDATE wallets
SET balance = balance - $2, lifetime_spent = lifetime_spent + $2, version = version + 1, updated_at = now()
WHERE user_id = $1 AND version = $3 AND balance >= $2`, userID, coins, version)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// CreditWallet adds earned coins.
func (s Store) CreditWallet(ctx context.Context, userID uuid.UUID, coins int64) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO wallets (user_id, balance, lifetime_earned) VALUES ($1, $2, $2)
ON CONFLICT (user_id) DO UPDATE
SET balance = wallets.balance + EXCLUDED.balance,
	lifetime_earned = wallets.lifetime_earned + EXCLUDED.lifetime_earned,
	version = wallets.version + 1,
	updated_at = now()`, userID, coins)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

// InsertTransaction appends a ledger entry; one per order and kind. A repeat
// yields ErrAlreadyApplied without raising a constraint error, so the
// surrounding transaction stays usable.
func (s Store) InsertTransaction(ctx context.Context, tx Transaction) error {
	tag, err := s.DB.Exec(ctx, `
INSERT INTO wallet_transactions (id, user_id, order_id, kind, coins)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (order_id, kind) DO NOTHING`, uuid.New(), tx.UserID, tx.OrderID, string(tx.Kind), tx.Coins)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyApplied
	}
	return nil
}

// ListTransactions returns the user's most recent ledger entries.
func (s Store) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	rows, err := s.DB.Query(ctx, `
SELECT id, user_id, order_id, kind, coins, created_at
FROM wallet_transactions WHERE user_id = $1
ORDER BY created_at DESC, id LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var (
			t    Transaction
			kind string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &kind, &t.Coins, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet transaction: %w", err)
		}
		t.Kind = Kind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}
