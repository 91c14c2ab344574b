package rate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, New(client, cfg)
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice.eth", ""); err != nil {
			t.Fatalf("check %d: unexpected error %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice.eth", ""); err != nil {
			t.Fatalf("increment %d: unexpected error %v", i, err)
		}
	}

	if err := l.CheckLogin(ctx, "alice.eth", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob.eth", ""); err != nil {
		t.Fatalf("other names must not share the budget, got %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "alice.eth", ""); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice.eth", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if err := l.CheckLogin(ctx, "alice.eth", ""); err != nil {
		t.Fatalf("expected budget restored after cooldown, got %v", err)
	}
}

func TestLimiterResetClearsCounters(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice.eth", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "alice.eth", "10.0.0.1")

	if err := l.ResetLogin(ctx, "alice.eth", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err := l.GetLoginAttempts(ctx, "alice.eth")
	if err != nil {
		t.Fatalf("get attempts: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLimiterIPThrottleSpansNames(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxAttempts: 2, Cooldown: time.Minute, EnableIPThrottle: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a.eth", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "b.eth", "10.0.0.1")

	if err := l.CheckLogin(ctx, "c.eth", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget to be spent, got %v", err)
	}
	if err := l.CheckLogin(ctx, "c.eth", "10.0.0.2"); err != nil {
		t.Fatalf("other IPs must not be throttled, got %v", err)
	}
}

func TestLimiterKeysAreHashedAndPrefixed(t *testing.T) {
	mr, l := newTestLimiter(t, Config{Prefix: "tst", MaxAttempts: 5, Cooldown: time.Minute})

	if err := l.IncrementLogin(context.Background(), "very-long-name.example.eth", ""); err != nil {
		t.Fatalf("increment: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %v", keys)
	}
	if !strings.HasPrefix(keys[0], "tst:ln:") || len(keys[0]) != len("tst:ln:")+32 {
		t.Fatalf("unexpected key layout %q", keys[0])
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Minute {
		t.Fatalf("expected cooldown TTL, got %v", ttl)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxAttempts: 5, Cooldown: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "alice.eth", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
