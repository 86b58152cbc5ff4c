package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scentmarket/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesCheckouts(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	key := lock.CheckoutKey(uuid.New())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}
	firstIn := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			record("first")
			close(firstIn)
			<-releaseFirst
			return nil
		})
	}()
	<-firstIn
	go func() {
		errs <- locker.WithLock(ctx, key, time.Second, func(context.Context) error {
			record("second")
			return nil
		})
	}()
	close(releaseFirst)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	mr, client := newClient(t)
	key := lock.CheckoutKey(uuid.New())
	require.NoError(t, mr.Set(key, "someone-else"))

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	err := locker.WithLock(context.Background(), key, time.Second, func(context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.True(t, errors.Is(err, lock.ErrNotAcquired), "got %v", err)
	got, _ := mr.Get(key)
	require.Equal(t, "someone-else", got)
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client}
	key := lock.CheckoutKey(uuid.New())

	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), key, time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists(key))
}
