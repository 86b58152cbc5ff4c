package loyalty

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/scentmarket/internal/common"
	"github.com/noah-isme/scentmarket/internal/pricing"
)

// WalletReader loads wallets and their history.
type WalletReader interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (WalletRecord, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
}

// Handler serves the caller's wallet.
type Handler struct {
	Store     WalletReader
	CoinValue pricing.Money
}

// Get returns balance, lifetime counters and recent transactions.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	wallet, err := h.Store.GetWallet(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	_, limit := common.ParsePagination(r, 20, 100)
	txs, err := h.Store.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"balance":        wallet.Wallet.Balance,
			"balanceValue":   pricing.Format(pricing.CoinValue(wallet.Wallet.Balance, h.CoinValue)),
			"lifetimeEarned": wallet.Wallet.LifetimeEarned,
			"lifetimeSpent":  wallet.Wallet.LifetimeSpent,
			"transactions":   txs,
		},
	})
}
