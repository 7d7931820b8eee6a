package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		for _, prefix := range []string{"rl:msg:test_*", "rl:join:test_*", "rl:t:test_*"} {
			iter := client.Scan(ctx, 0, prefix, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewLimiter(client)
}

func TestAllowWithinLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:t:", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "test_within", rule) {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if l.Allow(ctx, "test_within", rule) {
		t.Fatal("expected fourth request limited")
	}
}

func TestWindowExpiry(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:t:", Limit: 1, Window: time.Second}

	if !l.Allow(ctx, "test_expiry", rule) {
		t.Fatal("first request unexpectedly limited")
	}
	if l.Allow(ctx, "test_expiry", rule) {
		t.Fatal("expected second request limited")
	}

	time.Sleep(1100 * time.Millisecond)
	if !l.Allow(ctx, "test_expiry", rule) {
		t.Fatal("expected a fresh window after expiry")
	}
}

func TestRemaining(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:t:", Limit: 5, Window: time.Minute}

	if got := l.Remaining(ctx, "test_remaining", rule); got != 5 {
		t.Fatalf("expected full limit for unseen user, got %d", got)
	}

	l.Allow(ctx, "test_remaining", rule)
	l.Allow(ctx, "test_remaining", rule)
	if got := l.Remaining(ctx, "test_remaining", rule); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}
}

func TestIndependentIdentifiers(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:t:", Limit: 1, Window: time.Minute}

	if !l.Allow(ctx, "test_user_a", rule) {
		t.Fatal("user a unexpectedly limited")
	}
	if !l.Allow(ctx, "test_user_b", rule) {
		t.Fatal("user b must have an independent counter")
	}
}
