package test

import (
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	goNameAuth "github.com/MrEthical07/goNameAuth"
	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/connect/deeplink"
	"github.com/MrEthical07/goNameAuth/jwt"
	"github.com/MrEthical07/goNameAuth/resolver/directory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	walletAddress = "0x52908400098527886e0f7030069857d2e4169ee7"
	mwpDocument   = `{"address":"` + walletAddress + `","authFlows":[` +
		`{"platform":"browser","connection":"mwp","uri":"https://wallet.example/connect"}]}`
)

// harness is a full engine over a Redis directory and the deep-link
// connector, with the callback served by an httptest server.
type harness struct {
	engine   *goNameAuth.Engine
	dir      *directory.Store
	links    chan string
	callback *httptest.Server
}

func newRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb
}

func newHarness(t *testing.T, rdb redis.UniversalClient, cfg goNameAuth.Config) *harness {
	t.Helper()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	states, err := jwt.NewManager(jwt.Config{
		StateTTL:      time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    key,
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	h := &harness{
		dir:   directory.New(rdb, "it"),
		links: make(chan string, 4),
	}

	// The callback URL must exist before the connector; the handler is
	// attached once the connector is built.
	mux := &lateHandler{}
	h.callback = httptest.NewServer(mux)
	t.Cleanup(h.callback.Close)

	conn, err := deeplink.New(deeplink.Config{
		Opener: deeplink.LinkOpenerFunc(func(_ context.Context, link string) error {
			h.links <- link
			return nil
		}),
		States:      states,
		CallbackURL: h.callback.URL + "/callback",
	})
	if err != nil {
		t.Fatalf("deeplink: %v", err)
	}
	mux.set(conn.Handler())

	engine, err := goNameAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithResolvers(h.dir).
		WithConnector(authdoc.ConnectionMobileWallet, conn).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *harness) seed(t *testing.T, name, address, doc string) {
	t.Helper()
	if err := h.dir.Put(context.Background(), name, directory.Entry{Address: address, Authenticator: doc}, 0); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func (h *harness) nextLink(t *testing.T) string {
	t.Helper()
	select {
	case link := <-h.links:
		return link
	case <-time.After(2 * time.Second):
		t.Fatalf("wallet link was never opened")
		return ""
	}
}

func walletCaps() connect.CapabilityContext {
	caps := connect.NewCapabilityContext(authdoc.PlatformBrowser)
	caps.CanOpenLinks = true
	return caps
}

// lateHandler lets a server start before its handler exists.
type lateHandler struct {
	mu sync.RWMutex
	h  http.Handler
}

func (l *lateHandler) set(h http.Handler) {
	l.mu.Lock()
	l.h = h
	l.mu.Unlock()
}

func (l *lateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.RLock()
	h := l.h
	l.mu.RUnlock()
	if h == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}
