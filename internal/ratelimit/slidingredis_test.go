package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter := Limiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := 2 * time.Second
	limit := 2

	for i := 0; i < limit; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, limit)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed || remaining != limit-(i+1) {
			t.Fatalf("request %d: allowed=%v remaining=%d", i, allowed, remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, limit)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed || remaining != 0 {
		t.Fatalf("expected third request rejected, allowed=%v remaining=%d", allowed, remaining)
	}

	now = now.Add(window + time.Millisecond)
	allowed, _, _, err = limiter.Allow(ctx, "key", window, limit)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("expected request after window to be allowed")
	}
}
