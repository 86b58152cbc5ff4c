package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	*memoryRepo
	mu      sync.Mutex
	lookups int
	gate    chan struct{}
}

func (c *countingRepo) LookupProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (Product, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	if c.gate != nil {
		<-c.gate
	}
	return c.memoryRepo.LookupProduct(ctx, productID, variantID)
}

func TestCachedRepositoryLookup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingRepo{memoryRepo: newMemoryRepo()}
	vendor := uuid.New()
	product := Product{ProductID: uuid.New(), VendorID: &vendor, Title: "Oud Royale", Price: decimal.RequireFromString("210.00")}
	inner.products[product.ProductID] = product

	repo := NewCachedRepository(inner, client, time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := repo.LookupProduct(ctx, product.ProductID, nil)
	require.NoError(t, err)
	second, err := repo.LookupProduct(ctx, product.ProductID, nil)
	require.NoError(t, err)

	require.Equal(t, 1, inner.lookups)
	require.Equal(t, first.Title, second.Title)
	require.True(t, first.Price.Equal(second.Price))
	require.Equal(t, vendor, *second.VendorID)

	mr.FastForward(2 * time.Minute)
	_, err = repo.LookupProduct(ctx, product.ProductID, nil)
	require.NoError(t, err)
	require.Equal(t, 2, inner.lookups)

	_, err = repo.LookupProduct(ctx, uuid.New(), nil)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestCachedRepositoryFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	inner := &countingRepo{memoryRepo: newMemoryRepo()}
	product := Product{ProductID: uuid.New(), Title: "Citrus Veil", Price: decimal.RequireFromString("19.99")}
	inner.products[product.ProductID] = product

	repo := NewCachedRepository(inner, client, time.Minute, zerolog.Nop())
	got, err := repo.LookupProduct(context.Background(), product.ProductID, nil)
	require.NoError(t, err)
	require.Equal(t, "Citrus Veil", got.Title)
}

func TestCachedRepositoryCoalescesConcurrentMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingRepo{memoryRepo: newMemoryRepo(), gate: make(chan struct{})}
	product := Product{ProductID: uuid.New(), Title: "Amber Dusk", Price: decimal.RequireFromString("84.50")}
	inner.products[product.ProductID] = product

	repo := NewCachedRepository(inner, client, time.Minute, zerolog.Nop())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.LookupProduct(context.Background(), product.ProductID, nil)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		inner.mu.Lock()
		defer inner.mu.Unlock()
		return inner.lookups >= 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	inner.mu.Lock()
	defer inner.mu.Unlock()
	require.Less(t, inner.lookups, callers)
}
