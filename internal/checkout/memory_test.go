package checkout

import (
	"context"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/noah-isme/scentmarket/internal/cart"
	"github.com/noah-isme/scentmarket/internal/coupon"
	"github.com/noah-isme/scentmarket/internal/loyalty"
	"github.com/noah-isme/scentmarket/internal/order"
)

type memState struct {
	carts     map[uuid.UUID]uuid.UUID
	items     map[uuid.UUID][]cart.Item
	coupons   map[string]coupon.Record
	usages    map[[2]uuid.UUID]coupon.Usage
	wallets   map[uuid.UUID]loyalty.WalletRecord
	walletTxs map[string]loyalty.Transaction
	orders    map[uuid.UUID]order.Order
}

func newMemState() *memState {
	return &memState{
		carts:     map[uuid.UUID]uuid.UUID{},
		items:     map[uuid.UUID][]cart.Item{},
		coupons:   map[string]coupon.Record{},
		usages:    map[[2]uuid.UUID]coupon.Usage{},
		wallets:   map[uuid.UUID]loyalty.WalletRecord{},
		walletTxs: map[string]loyalty.Transaction{},
		orders:    map[uuid.UUID]order.Order{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		carts:     maps.Clone(s.carts),
		items:     make(map[uuid.UUID][]cart.Item, len(s.items)),
		coupons:   maps.Clone(s.coupons),
		usages:    maps.Clone(s.usages),
		wallets:   maps.Clone(s.wallets),
		walletTxs: maps.Clone(s.walletTxs),
		orders:    maps.Clone(s.orders),
	}
	for k, v := range s.items {
		c.items[k] = slices.Clone(v)
	}
	return c
}

// memRepo applies a transaction's writes only when fn succeeds.
type memRepo struct {
	state *memState
	// couponConflicts forces IncrementUsage to fail this many times.
	couponConflicts int
	txCount         int
}

func (r *memRepo) Queries() Queries {
	return (&memQueries{st: r.state, repo: r}).bundle()
}

func (r *memRepo) InTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	r.txCount++
	work := r.state.clone()
	if err := fn(ctx, (&memQueries{st: work, repo: r}).bundle()); err != nil {
		return err
	}
	r.state = work
	return nil
}

type memQueries struct {
	st   *memState
	repo *memRepo
}

func (q *memQueries) bundle() Queries {
	return Queries{Cart: q, Coupons: q, Wallets: q, Orders: q}
}

func (q *memQueries) LockCart(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, ok := q.st.carts[userID]
	if !ok {
		return uuid.Nil, cart.ErrNotFound
	}
	return id, nil
}

func (q *memQueries) ListItems(_ context.Context, userID uuid.UUID) ([]cart.Item, error) {
	return slices.Clone(q.st.items[userID]), nil
}

func (q *memQueries) Clear(_ context.Context, cartID uuid.UUID) error {
	for user, id := range q.st.carts {
		if id == cartID {
			delete(q.st.items, user)
		}
	}
	return nil
}

func (q *memQueries) GetByCode(_ context.Context, code string) (coupon.Record, error) {
	rec, ok := q.st.coupons[code]
	if !ok {
		return coupon.Record{}, coupon.ErrNotFound
	}
	return rec, nil
}

func (q *memQueries) GetByCodeForUpdate(ctx context.Context, code string) (coupon.Record, error) {
	return q.GetByCode(ctx, code)
}

func (q *memQueries) IncrementUsage(_ context.Context, id uuid.UUID, version int64) error {
	if q.repo.couponConflicts > 0 {
		q.repo.couponConflicts--
		return coupon.ErrConflict
	}
	for code, rec := range q.st.coupons {
		if rec.ID == id && rec.Version == version {
			rec.Coupon.UsageCount++
			rec.Version++
			q.st.coupons[code] = rec
			return nil
		}
	}
	return coupon.ErrConflict
}

func (q *memQueries) InsertUsage(_ context.Context, u coupon.Usage) error {
	key := [2]uuid.UUID{u.CouponID, u.OrderID}
	if _, ok := q.st.usages[key]; ok {
		return coupon.ErrAlreadySettled
	}
	q.st.usages[key] = u
	return nil
}

func (q *memQueries) GetUsageByOrder(_ context.Context, couponID, orderID uuid.UUID) (coupon.Usage, error) {
	u, ok := q.st.usages[[2]uuid.UUID{couponID, orderID}]
	if !ok {
		return coupon.Usage{}, coupon.ErrNotFound
	}
	return u, nil
}

func (q *memQueries) GetWallet(_ context.Context, userID uuid.UUID) (loyalty.WalletRecord, error) {
	if w, ok := q.st.wallets[userID]; ok {
		return w, nil
	}
	return loyalty.WalletRecord{UserID: userID}, nil
}

func (q *memQueries) GetWalletForUpdate(_ context.Context, userID uuid.UUID) (loyalty.WalletRecord, error) {
	w, ok := q.st.wallets[userID]
	if !ok {
		w = loyalty.WalletRecord{UserID: userID, Version: 1}
		q.st.wallets[userID] = w
	}
	return w, nil
}

func (q *memQueries) DebitWallet(_ context.Context, userID uuid.UUID, coins, version int64) error {
	w := q.st.wallets[userID]
	if w.Version != version || w.Wallet.Balance < coins {
		return loyalty.ErrConflict
	}
	w.Wallet.Balance -= coins
	w.Wallet.LifetimeSpent += coins
	w.Version++
	q.st.wallets[userID] = w
	return nil
}

func (q *memQueries) CreditWallet(_ context.Context, userID uuid.UUID, coins int64) error {
	w := q.st.wallets[userID]
	w.Wallet.Balance += coins
	w.Wallet.LifetimeEarned += coins
	w.Version++
	q.st.wallets[userID] = w
	return nil
}

func (q *memQueries) InsertTransaction(_ context.Context, tx loyalty.Transaction) error {
	key := tx.OrderID.String() + string(tx.Kind)
	if _, ok := q.st.walletTxs[key]; ok {
		return loyalty.ErrAlreadyApplied
	}
	q.st.walletTxs[key] = tx
	return nil
}

func (q *memQueries) Insert(_ context.Context, o order.Order) error {
	q.st.orders[o.ID] = o
	return nil
}
