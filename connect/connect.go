// Package connect defines the contract between the flow executor and the
// mechanisms that actually reach a wallet: injected extension providers,
// session-protocol relays, and mobile deep links.
//
// A Connector turns one flow spec into a Handshake. Initiate must return quickly:
// it either fails (provider absent, surface unavailable, setup error) or hands
// back a Handshake whose Wait suspends until the wallet approves or rejects.
package connect

import (
	"context"
	"errors"
	"sort"

	"github.com/MrEthical07/goNameAuth/authdoc"
)

var (
	// ErrProviderNotFound means the provider a flow names is not present right now.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrUnsupported means this runtime cannot carry the flow (no QR surface,
	// no link opener, no default uri).
	ErrUnsupported = errors.New("flow unsupported in this context")
	// ErrRejected is returned from Wait when the user or wallet declined.
	ErrRejected = errors.New("connection rejected")
	// ErrTimeout is returned from Wait when a handshake deadline elapsed.
	ErrTimeout = errors.New("handshake timed out")
	// ErrAbandoned is returned from Wait after Abandon.
	ErrAbandoned = errors.New("handshake abandoned")
)

// CapabilityContext is the caller's snapshot of what the runtime can do.
type CapabilityContext struct {
	Platform     authdoc.Platform
	Providers    map[string]struct{}
	CanOpenLinks bool
	CanShowQR    bool
}

// NewCapabilityContext builds a context from a provider identifier list.
func NewCapabilityContext(platform authdoc.Platform, providers ...string) CapabilityContext {
	set := make(map[string]struct{}, len(providers))
	for _, id := range providers {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return CapabilityContext{Platform: platform, Providers: set}
}

// HasProvider reports whether a provider with the given identifier is discoverable.
func (c CapabilityContext) HasProvider(id string) bool {
	_, ok := c.Providers[id]
	return ok
}

// ProviderIDs returns the provider identifiers in sorted order.
func (c CapabilityContext) ProviderIDs() []string {
	out := make([]string, 0, len(c.Providers))
	for id := range c.Providers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy so later caller mutations are not observed.
func (c CapabilityContext) Snapshot() CapabilityContext {
	out := c
	out.Providers = make(map[string]struct{}, len(c.Providers))
	for id := range c.Providers {
		out.Providers[id] = struct{}{}
	}
	return out
}

// Session is the opaque result of a completed handshake. Handle belongs to the
// connector that produced it; the engine only reads Address and Chain.
type Session struct {
	Address    string
	Chain      string
	Connection authdoc.Connection
	Handle     any
}

// Handshake is one in-flight connection attempt.
type Handshake interface {
	// URI is what the user interacts with: a pairing URI to render as QR, a deep
	// link that was opened, or "" for injected providers.
	URI() string
	// Wait blocks until the wallet answers or ctx ends.
	Wait(ctx context.Context) (*Session, error)
	// Abandon tells the mechanism to drop the handshake. Best effort, must not block.
	Abandon()
}

// Connector starts handshakes for one connection kind.
type Connector interface {
	Initiate(ctx context.Context, spec authdoc.FlowSpec, caps CapabilityContext) (Handshake, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, spec authdoc.FlowSpec, caps CapabilityContext) (Handshake, error)

func (f ConnectorFunc) Initiate(ctx context.Context, spec authdoc.FlowSpec, caps CapabilityContext) (Handshake, error) {
	return f(ctx, spec, caps)
}
