package goNameAuth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/resolver"
)

const (
	testAddress  = "0x52908400098527886e0f7030069857d2e4169ee7"
	otherAddress = "0xde709f2102306220921060314715629080e2fb77"
)

// testWallet is an injected-style provider answering the two RPC calls the
// extension connector makes.
type testWallet struct {
	account string
	chainID string
}

func (w *testWallet) Request(ctx context.Context, method string, _ any) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts":
		return json.Marshal([]string{w.account})
	case "eth_chainId":
		return json.Marshal(w.chainID)
	}
	return nil, fmt.Errorf("unsupported method %s", method)
}

// stubHandshake answers Wait with a fixed session or error. When block is set,
// Wait ignores its context and returns only after Abandon.
type stubHandshake struct {
	uri     string
	session *connect.Session
	err     error
	block   bool

	release   chan struct{}
	once      sync.Once
	abandoned *atomic.Int32
}

func (h *stubHandshake) URI() string { return h.uri }

func (h *stubHandshake) Wait(ctx context.Context) (*connect.Session, error) {
	if h.block {
		<-h.release
		return nil, connect.ErrAbandoned
	}
	if h.err != nil {
		return nil, h.err
	}
	sess := *h.session
	return &sess, nil
}

func (h *stubHandshake) Abandon() {
	if h.abandoned != nil {
		h.abandoned.Add(1)
	}
	h.once.Do(func() { close(h.release) })
}

// stubConnector hands out stubHandshakes and records every Initiate.
type stubConnector struct {
	address string
	err     error
	block   bool
	initErr error

	initiated atomic.Int32
	abandoned atomic.Int32
}

func (c *stubConnector) Initiate(_ context.Context, spec authdoc.FlowSpec, _ connect.CapabilityContext) (connect.Handshake, error) {
	c.initiated.Add(1)
	if c.initErr != nil {
		return nil, c.initErr
	}
	return &stubHandshake{
		uri:       "test://" + string(spec.Connection) + "/" + spec.URI,
		session:   &connect.Session{Address: c.address},
		err:       c.err,
		block:     c.block,
		release:   make(chan struct{}),
		abandoned: &c.abandoned,
	}, nil
}

// countingResolver counts ResolveName calls before delegating.
type countingResolver struct {
	resolver.Resolver
	calls atomic.Int32
}

func (r *countingResolver) ResolveName(ctx context.Context, name string) (string, error) {
	r.calls.Add(1)
	return r.Resolver.ResolveName(ctx, name)
}

func inlineDoc(t *testing.T, address string, flows ...authdoc.FlowSpec) authdoc.Source {
	t.Helper()

	type wireFlow struct {
		Platform   string `json:"platform,omitempty"`
		Connection string `json:"connection"`
		URI        string `json:"uri,omitempty"`
	}
	wire := struct {
		Address   string     `json:"address"`
		AuthFlows []wireFlow `json:"authFlows"`
	}{Address: address}
	for _, f := range flows {
		wire.AuthFlows = append(wire.AuthFlows, wireFlow{
			Platform:   string(f.Platform),
			Connection: string(f.Connection),
			URI:        f.URI,
		})
	}

	data, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return authdoc.InlineSource(data)
}

func extFlow(uri string) authdoc.FlowSpec {
	return authdoc.FlowSpec{Platform: authdoc.PlatformBrowser, Connection: authdoc.ConnectionExtension, URI: uri}
}

func wcFlow() authdoc.FlowSpec {
	return authdoc.FlowSpec{Connection: authdoc.ConnectionWalletConnect}
}

func mwpFlow(uri string) authdoc.FlowSpec {
	return authdoc.FlowSpec{Platform: authdoc.PlatformBrowser, Connection: authdoc.ConnectionMobileWallet, URI: uri}
}

func staticResolver(name, address string, source authdoc.Source) *resolver.Static {
	s := resolver.NewStatic("test")
	s.Set(name, resolver.Record{Address: address, Authenticator: source})
	return s
}

func buildEngine(t *testing.T, configure func(*Builder)) *Engine {
	t.Helper()

	b := New()
	configure(b)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func browserCaps(providers ...string) connect.CapabilityContext {
	caps := connect.NewCapabilityContext(authdoc.PlatformBrowser, providers...)
	caps.CanOpenLinks = true
	caps.CanShowQR = true
	return caps
}

func mustLoginError(t *testing.T, err error) *LoginError {
	t.Helper()

	var lerr *LoginError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *LoginError, got %T: %v", err, err)
	}
	return lerr
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func kindsOf(events []Event) string {
	parts := make([]string, len(events))
	for i, ev := range events {
		parts[i] = ev.Kind.String()
	}
	return strings.Join(parts, ",")
}
