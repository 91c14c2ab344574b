package goNameAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func rateLimitedConfig(max int) Config {
	cfg := DefaultConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.MaxAttempts = max
	cfg.RateLimit.Cooldown = time.Minute
	return cfg
}

func TestRateLimitRequiresRedis(t *testing.T) {
	_, err := New().
		WithConfig(rateLimitedConfig(3)).
		WithResolvers(resolver.NewStatic("empty")).
		Build()
	if err == nil {
		t.Fatalf("expected Build to fail without redis")
	}
}

func TestRateLimitBlocksBeforeResolution(t *testing.T) {
	_, client := newTestRedis(t)
	counting := &countingResolver{Resolver: resolver.NewStatic("empty")}

	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(rateLimitedConfig(2)).
			WithMetricsEnabled(true).
			WithRedis(client).
			WithResolvers(counting)
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, LoginRequest{Name: "nobody.eth"}); !errors.Is(err, ErrResolutionFailed) {
			t.Fatalf("attempt %d: expected ErrResolutionFailed, got %v", i, err)
		}
	}

	calls := counting.calls.Load()
	if _, err := engine.Login(ctx, LoginRequest{Name: "Nobody.eth"}); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if counting.calls.Load() != calls {
		t.Fatalf("a throttled attempt must not reach resolvers")
	}

	if _, err := engine.Login(ctx, LoginRequest{Name: "someone-else.eth"}); !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("other names keep their own budget, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginRateLimited] != 1 {
		t.Fatalf("expected one rate-limited login, got %d", snap.Counters[MetricLoginRateLimited])
	}
}

func TestRateLimitIPSpansNames(t *testing.T) {
	_, client := newTestRedis(t)
	cfg := rateLimitedConfig(2)
	cfg.RateLimit.EnableIPThrottle = true

	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(cfg).
			WithRedis(client).
			WithResolvers(resolver.NewStatic("empty"))
	})

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	for _, name := range []string{"a.eth", "b.eth"} {
		if _, err := engine.Login(ctx, LoginRequest{Name: name}); !errors.Is(err, ErrResolutionFailed) {
			t.Fatalf("%s: expected ErrResolutionFailed, got %v", name, err)
		}
	}
	if _, err := engine.Login(ctx, LoginRequest{Name: "c.eth"}); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected the client budget to apply across names, got %v", err)
	}
}

func TestRateLimitSuccessResetsBudget(t *testing.T) {
	_, client := newTestRedis(t)
	conn := &stubConnector{address: testAddress}
	static := staticResolver("alice.eth", testAddress, inlineDoc(t, testAddress, wcFlow()))

	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(rateLimitedConfig(2)).
			WithRedis(client).
			WithResolvers(static).
			WithConnector(authdoc.ConnectionWalletConnect, conn)
	})

	ctx := context.Background()
	conn.err = errors.New("relay unreachable")
	if _, err := engine.Login(ctx, LoginRequest{Name: "alice.eth", Capabilities: browserCaps()}); !errors.Is(err, ErrAllFlowsFailed) {
		t.Fatalf("expected ErrAllFlowsFailed, got %v", err)
	}

	conn.err = nil
	if _, err := engine.Login(ctx, LoginRequest{Name: "alice.eth", Capabilities: browserCaps()}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	conn.err = errors.New("relay unreachable")
	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, LoginRequest{Name: "alice.eth", Capabilities: browserCaps()}); !errors.Is(err, ErrAllFlowsFailed) {
			t.Fatalf("attempt %d after reset: expected ErrAllFlowsFailed, got %v", i, err)
		}
	}
	if _, err := engine.Login(ctx, LoginRequest{Name: "alice.eth", Capabilities: browserCaps()}); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
}

func TestRateLimitIgnoresCancelledAttempts(t *testing.T) {
	_, client := newTestRedis(t)
	conn := &stubConnector{block: true}
	static := staticResolver("alice.eth", testAddress, inlineDoc(t, testAddress, wcFlow()))

	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(rateLimitedConfig(1)).
			WithRedis(client).
			WithResolvers(static).
			WithConnector(authdoc.ConnectionWalletConnect, conn)
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		_, err := engine.Login(ctx, LoginRequest{
			Name:         "alice.eth",
			Capabilities: browserCaps(),
			Observer: func(ev Event) {
				if ev.Kind == EventAwaitingUser {
					cancel()
				}
			},
		})
		cancel()
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("attempt %d: expected ErrCancelled, got %v", i, err)
		}
	}
}

func TestRateLimitFailsClosedWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	counting := &countingResolver{Resolver: resolver.NewStatic("empty")}

	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(rateLimitedConfig(3)).
			WithRedis(client).
			WithResolvers(counting)
	})

	mr.Close()

	_, err := engine.Login(context.Background(), LoginRequest{Name: "alice.eth"})
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if counting.calls.Load() != 0 {
		t.Fatalf("resolvers must not run when the throttle cannot be checked")
	}
}
