// Package deeplink implements link-based connections such as "mwp" (mobile
// wallet protocol): the connector opens a wallet link carrying a signed state
// token and a callback URL, and the wallet answers by calling the callback.
//
// The callback side is an http.Handler. A request must carry the state token
// it was given plus either an address (approval) or an error (rejection):
//
//	GET /lwn/callback?state=<token>&address=<addr>&chain=<caip2>
//	GET /lwn/callback?state=<token>&error=<reason>
package deeplink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/internal"
	"github.com/MrEthical07/goNameAuth/jwt"
)

var (
	// ErrUnknownState is returned for callbacks that match no pending handshake.
	ErrUnknownState = errors.New("deeplink: unknown or expired state")
)

// LinkOpener hands a link to the platform (OS intent, browser navigation).
type LinkOpener interface {
	Open(ctx context.Context, link string) error
}

// LinkOpenerFunc adapts a function to LinkOpener.
type LinkOpenerFunc func(ctx context.Context, link string) error

func (f LinkOpenerFunc) Open(ctx context.Context, link string) error { return f(ctx, link) }

// Config configures a Connector.
type Config struct {
	Opener LinkOpener
	States *jwt.Manager
	// CallbackURL is where wallets report back; it is served by Handler.
	CallbackURL string
	// DefaultURIs supplies a link per connection kind for flows without a uri.
	DefaultURIs map[authdoc.Connection]string
}

type result struct {
	sess *connect.Session
	err  error
}

type pending struct {
	conn authdoc.Connection
	ch   chan result
}

// Connector opens wallet links and routes callbacks back to handshakes.
type Connector struct {
	cfg Config

	mu      sync.Mutex
	waiting map[string]*pending
}

// New validates cfg and returns a Connector.
func New(cfg Config) (*Connector, error) {
	if cfg.Opener == nil {
		return nil, errors.New("deeplink: opener is required")
	}
	if cfg.States == nil {
		return nil, errors.New("deeplink: state manager is required")
	}
	if u, err := url.Parse(cfg.CallbackURL); err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("deeplink: callback url %q must be absolute", cfg.CallbackURL)
	}
	return &Connector{cfg: cfg, waiting: make(map[string]*pending)}, nil
}

// Pending returns the number of handshakes awaiting a callback.
func (c *Connector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiting)
}

// Initiate opens the wallet link for spec. It needs caps.CanOpenLinks and a
// link: the flow uri or the configured default for the connection.
func (c *Connector) Initiate(ctx context.Context, spec authdoc.FlowSpec, caps connect.CapabilityContext) (connect.Handshake, error) {
	if !caps.CanOpenLinks {
		return nil, fmt.Errorf("%w: cannot open links", connect.ErrUnsupported)
	}
	base := spec.URI
	if base == "" {
		base = c.cfg.DefaultURIs[spec.Connection]
	}
	if base == "" {
		return nil, fmt.Errorf("%w: no link for %s", connect.ErrUnsupported, spec.Connection)
	}

	nonce, err := internal.NewNonce()
	if err != nil {
		return nil, err
	}
	state, err := c.cfg.States.CreateState(jwt.StateParams{Nonce: nonce, Connection: string(spec.Connection)})
	if err != nil {
		return nil, err
	}
	link, err := buildLink(base, c.cfg.CallbackURL, state)
	if err != nil {
		return nil, err
	}

	p := &pending{conn: spec.Connection, ch: make(chan result, 1)}
	c.mu.Lock()
	c.waiting[nonce] = p
	c.mu.Unlock()

	if err := c.cfg.Opener.Open(ctx, link); err != nil {
		c.forget(nonce)
		return nil, fmt.Errorf("deeplink: open: %w", err)
	}
	return &handshake{conn: c, nonce: nonce, link: link, p: p, abandoned: make(chan struct{})}, nil
}

func buildLink(base, callback, state string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("deeplink: link %q: %w", base, err)
	}
	q := u.Query()
	q.Set("callback", callback)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Connector) forget(nonce string) {
	c.mu.Lock()
	delete(c.waiting, nonce)
	c.mu.Unlock()
}

// Complete delivers a wallet answer for state. Exactly one of address or
// reason should be set. A state whose connection differs from the pending
// handshake's is unknown. It is what Handler calls.
func (c *Connector) Complete(state, address, chain, reason string) error {
	claims, err := c.cfg.States.ParseState(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownState, err)
	}

	c.mu.Lock()
	p, ok := c.waiting[claims.Nonce]
	if ok && claims.Connection != string(p.conn) {
		ok = false
	} else {
		delete(c.waiting, claims.Nonce)
	}
	c.mu.Unlock()
	if !ok {
		return ErrUnknownState
	}

	var res result
	switch {
	case reason != "":
		res.err = fmt.Errorf("%w: %s", connect.ErrRejected, reason)
	case strings.TrimSpace(address) == "":
		res.err = fmt.Errorf("%w: callback without address", connect.ErrRejected)
	default:
		res.sess = &connect.Session{
			Address:    strings.TrimSpace(address),
			Chain:      strings.TrimSpace(chain),
			Connection: p.conn,
			Handle:     claims.Nonce,
		}
	}
	p.ch <- res
	return nil
}

type handshake struct {
	conn      *Connector
	nonce     string
	link      string
	p         *pending
	abandoned chan struct{}
	once      sync.Once
}

func (h *handshake) URI() string { return h.link }

func (h *handshake) Abandon() {
	h.once.Do(func() {
		h.conn.forget(h.nonce)
		close(h.abandoned)
	})
}

func (h *handshake) Wait(ctx context.Context) (*connect.Session, error) {
	select {
	case res := <-h.p.ch:
		return res.sess, res.err
	case <-ctx.Done():
		h.Abandon()
		return nil, ctx.Err()
	case <-h.abandoned:
		return nil, connect.ErrAbandoned
	}
}
