package loyalty

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scentmarket/internal/pricing"
)

type memoryWallets struct {
	wallets map[uuid.UUID]WalletRecord
	txs     map[string]Transaction
}

func newMemoryWallets() *memoryWallets {
	return &memoryWallets{wallets: map[uuid.UUID]WalletRecord{}, txs: map[string]Transaction{}}
}

func (m *memoryWallets) GetWallet(_ context.Context, userID uuid.UUID) (WalletRecord, error) {
	if w, ok := m.wallets[userID]; ok {
		return w, nil
	}
	return WalletRecord{UserID: userID}, nil
}

func (m *memoryWallets) GetWalletForUpdate(_ context.Context, userID uuid.UUID) (WalletRecord, error) {
	w, ok := m.wallets[userID]
	if !ok {
		w = WalletRecord{UserID: userID, Version: 1}
		m.wallets[userID] = w
	}
	return w, nil
}

func (m *memoryWallets) DebitWallet(_ context.Context, userID uuid.UUID, coins, version int64) error {
	w := m.wallets[userID]
	if w.Version != version || w.Wallet.Balance < coins {
		return ErrConflict
	}
	w.Wallet.Balance -= coins
	w.Wallet.LifetimeSpent += coins
	w.Version++
	m.wallets[userID] = w
	return nil
}

func (m *memoryWallets) CreditWallet(_ context.Context, userID uuid.UUID, coins int64) error {
	w := m.wallets[userID]
	w.UserID = userID
	w.Wallet.Balance += coins
	w.Wallet.LifetimeEarned += coins
	w.Version++
	m.wallets[userID] = w
	return nil
}

func (m *memoryWallets) InsertTransaction(_ context.Context, tx Transaction) error {
	key := tx.OrderID.String() + string(tx.Kind)
	if _, ok := m.txs[key]; ok {
		return ErrAlreadyApplied
	}
	m.txs[key] = tx
	return nil
}

func (m *memoryWallets) ListTransactions(_ context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	var out []Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func TestDebitAppliesOncePerOrder(t *testing.T) {
	store := newMemoryWallets()
	userID, orderID := uuid.New(), uuid.New()
	store.wallets[userID] = WalletRecord{UserID: userID, Version: 3, Wallet: pricing.Wallet{Balance: 500}}
	ledger := Ledger{Q: store}

	w, err := store.GetWalletForUpdate(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, ledger.Debit(context.Background(), w, orderID, 210))
	require.Equal(t, int64(290), store.wallets[userID].Wallet.Balance)
	require.Equal(t, int64(210), store.wallets[userID].Wallet.LifetimeSpent)

	require.NoError(t, ledger.Debit(context.Background(), w, orderID, 210))
	require.Equal(t, int64(290), store.wallets[userID].Wallet.Balance)
}

func TestDebitStaleVersionConflicts(t *testing.T) {
	store := newMemoryWallets()
	userID := uuid.New()
	store.wallets[userID] = WalletRecord{UserID: userID, Version: 2, Wallet: pricing.Wallet{Balance: 100}}
	stale := WalletRecord{UserID: userID, Version: 1, Wallet: pricing.Wallet{Balance: 100}}

	err := Ledger{Q: store}.Debit(context.Background(), stale, uuid.New(), 10)
	require.ErrorIs(t, err, ErrConflict)
}

func TestDebitZeroCoinsIsNoop(t *testing.T) {
	require.NoError(t, Ledger{}.Debit(context.Background(), WalletRecord{}, uuid.New(), 0))
}

func TestCreditIsIdempotent(t *testing.T) {
	store := newMemoryWallets()
	userID, orderID := uuid.New(), uuid.New()
	ledger := Ledger{Q: store}

	applied, err := ledger.Credit(context.Background(), userID, orderID, 7)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = ledger.Credit(context.Background(), userID, orderID, 7)
	require.NoError(t, err)
	require.False(t, applied)

	w := store.wallets[userID]
	require.Equal(t, int64(7), w.Wallet.Balance)
	require.Equal(t, int64(7), w.Wallet.LifetimeEarned)
}
