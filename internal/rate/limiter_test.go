package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, rules map[string]Rule) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, Config{Prefix: "akrltest", Rules: rules}), mr
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newLimiter(t, map[string]Rule{"login": {Max: 3, Window: time.Minute}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "login", "1.2.3.4"); err != nil {
			t.Fatalf("hit %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "login", "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAllowSeparateIdentities(t *testing.T) {
	l, _ := newLimiter(t, map[string]Rule{"login": {Max: 1, Window: time.Minute}})
	ctx := context.Background()

	if err := l.Allow(ctx, "login", "1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow(ctx, "login", "5.6.7.8"); err != nil {
		t.Fatalf("distinct identities must not share a counter: %v", err)
	}
}

func TestAllowUnconfiguredRoute(t *testing.T) {
	l, _ := newLimiter(t, map[string]Rule{"login": {Max: 1, Window: time.Minute}})

	for i := 0; i < 10; i++ {
		if err := l.Allow(context.Background(), "logout", "1.2.3.4"); err != nil {
			t.Fatalf("unconfigured route must never limit: %v", err)
		}
	}
}

func TestWindowExpiry(t *testing.T) {
	l, mr := newLimiter(t, map[string]Rule{"refresh": {Max: 1, Window: time.Minute}})
	ctx := context.Background()

	if err := l.Allow(ctx, "refresh", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow(ctx, "refresh", "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if err := l.Allow(ctx, "refresh", "u1"); err != nil {
		t.Fatalf("counter must reset after the window: %v", err)
	}
}

func TestReset(t *testing.T) {
	l, _ := newLimiter(t, map[string]Rule{"login": {Max: 1, Window: time.Minute}})
	ctx := context.Background()

	_ = l.Allow(ctx, "login", "u1")
	if err := l.Allow(ctx, "login", "u1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Reset(ctx, "login", "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Allow(ctx, "login", "u1"); err != nil {
		t.Fatalf("allow after reset: %v", err)
	}
}

func TestHits(t *testing.T) {
	l, _ := newLimiter(t, map[string]Rule{"login": {Max: 5, Window: time.Minute}})
	ctx := context.Background()

	n, err := l.Hits(ctx, "login", "ghost")
	if err != nil || n != 0 {
		t.Fatalf("missing key: got %d, %v", n, err)
	}

	_ = l.Allow(ctx, "login", "u1")
	_ = l.Allow(ctx, "login", "u1")
	n, err = l.Hits(ctx, "login", "u1")
	if err != nil || n != 2 {
		t.Fatalf("got %d, %v; want 2", n, err)
	}
}

func TestUnavailable(t *testing.T) {
	l, mr := newLimiter(t, map[string]Rule{"login": {Max: 1, Window: time.Minute}})
	mr.Close()

	if err := l.Allow(context.Background(), "login", "u1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
