package flows

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
)

type behavior int

const (
	behaveApprove behavior = iota
	behaveReject
	behaveNotFound
	behaveUnsupported
	behaveInitiateError
	behaveBlock
	// behaveIgnoreContext waits for Abandon and never looks at its context.
	behaveIgnoreContext
)

// scriptedConnector answers each flow according to a behavior keyed by flow uri.
type scriptedConnector struct {
	mu        sync.Mutex
	script    map[string]behavior
	address   string
	initiated []string
	abandoned atomic.Int32
	// log records initiate and abandon calls in order, e.g. "initiate:a".
	log []string

	live    atomic.Int32
	maxLive atomic.Int32

	// waiting is signalled when a blocking handshake enters Wait.
	waiting chan string
}

func newScriptedConnector(address string, script map[string]behavior) *scriptedConnector {
	return &scriptedConnector{
		script:  script,
		address: address,
		waiting: make(chan string, 16),
	}
}

func (c *scriptedConnector) Initiate(ctx context.Context, spec authdoc.FlowSpec, _ connect.CapabilityContext) (connect.Handshake, error) {
	c.mu.Lock()
	c.initiated = append(c.initiated, spec.URI)
	c.log = append(c.log, "initiate:"+spec.URI)
	b := c.script[spec.URI]
	c.mu.Unlock()

	switch b {
	case behaveNotFound:
		return nil, connect.ErrProviderNotFound
	case behaveUnsupported:
		return nil, connect.ErrUnsupported
	case behaveInitiateError:
		return nil, context.DeadlineExceeded
	}

	n := c.live.Add(1)
	for {
		peak := c.maxLive.Load()
		if n <= peak || c.maxLive.CompareAndSwap(peak, n) {
			break
		}
	}
	return &scriptedHandshake{conn: c, spec: spec, behavior: b, released: make(chan struct{})}, nil
}

func (c *scriptedConnector) Log() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *scriptedConnector) Initiated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.initiated))
	copy(out, c.initiated)
	return out
}

type scriptedHandshake struct {
	conn     *scriptedConnector
	spec     authdoc.FlowSpec
	behavior behavior
	once     sync.Once

	released    chan struct{}
	releaseOnce sync.Once
}

func (h *scriptedHandshake) URI() string { return "test:" + h.spec.URI }

func (h *scriptedHandshake) end() {
	h.once.Do(func() { h.conn.live.Add(-1) })
}

func (h *scriptedHandshake) Wait(ctx context.Context) (*connect.Session, error) {
	defer h.end()
	switch h.behavior {
	case behaveReject:
		return nil, connect.ErrRejected
	case behaveBlock:
		h.conn.waiting <- h.spec.URI
		<-ctx.Done()
		return nil, ctx.Err()
	case behaveIgnoreContext:
		<-h.released
		return nil, connect.ErrAbandoned
	default:
		return &connect.Session{Address: h.conn.address}, nil
	}
}

func (h *scriptedHandshake) Abandon() {
	h.conn.abandoned.Add(1)
	h.conn.mu.Lock()
	h.conn.log = append(h.conn.log, "abandon:"+h.spec.URI)
	h.conn.mu.Unlock()
	h.releaseOnce.Do(func() { close(h.released) })
}

func connectorFor(c connect.Connector) func(authdoc.Connection) (connect.Connector, bool) {
	return func(authdoc.Connection) (connect.Connector, bool) {
		return c, true
	}
}

func candidatesOf(specs ...authdoc.FlowSpec) []Candidate {
	out := make([]Candidate, len(specs))
	for i, s := range specs {
		out[i] = Candidate{Index: i, Spec: s}
	}
	return out
}

func wc(uri string) authdoc.FlowSpec {
	return authdoc.FlowSpec{Connection: authdoc.ConnectionWalletConnect, URI: uri}
}
