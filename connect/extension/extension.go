// Package extension connects to browser wallet providers found through the
// discovery registry. A flow's uri selects the provider by RDNS; an empty uri
// or "injected" selects the legacy injected provider.
package extension

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/discovery"
)

const (
	// CodeUserRejected is the EIP-1193 "user rejected request" code.
	CodeUserRejected = 4001
	// CodeUnauthorized is the EIP-1193 "unauthorized" code.
	CodeUnauthorized = 4100
)

// ProviderError is the error shape EIP-1193 providers return.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// Connector initiates extension handshakes.
type Connector struct {
	registry *discovery.Registry
}

// New returns a Connector reading providers from registry.
func New(registry *discovery.Registry) *Connector {
	return &Connector{registry: registry}
}

// Initiate fails with connect.ErrProviderNotFound when the named provider is
// not currently registered, regardless of what caps claimed.
func (c *Connector) Initiate(ctx context.Context, spec authdoc.FlowSpec, caps connect.CapabilityContext) (connect.Handshake, error) {
	if spec.Connection != authdoc.ConnectionExtension {
		return nil, fmt.Errorf("%w: connection %q", connect.ErrUnsupported, spec.Connection)
	}
	if c.registry == nil {
		return nil, connect.ErrProviderNotFound
	}
	p, ok := c.registry.Lookup(spec.URI)
	if !ok {
		return nil, fmt.Errorf("%w: %s", connect.ErrProviderNotFound, providerLabel(spec.URI))
	}

	hctx, cancel := context.WithCancel(context.Background())
	return &handshake{provider: p, ctx: hctx, cancel: cancel}, nil
}

func providerLabel(uri string) string {
	if uri == "" {
		return authdoc.InjectedURI
	}
	return uri
}

type handshake struct {
	provider discovery.Provider
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

func (h *handshake) URI() string { return "" }

func (h *handshake) Abandon() {
	h.once.Do(h.cancel)
}

func (h *handshake) Wait(ctx context.Context) (*connect.Session, error) {
	ctx, stop := mergeCancel(ctx, h.ctx)
	defer stop()

	raw, err := h.provider.Request(ctx, "eth_requestAccounts", nil)
	if err != nil {
		return nil, h.classify(ctx, err)
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("eth_requestAccounts: %w", err)
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return nil, fmt.Errorf("%w: no accounts exposed", connect.ErrRejected)
	}

	sess := &connect.Session{
		Address:    accounts[0],
		Connection: authdoc.ConnectionExtension,
		Handle:     h.provider,
	}
	if raw, err := h.provider.Request(ctx, "eth_chainId", nil); err == nil {
		var hexID string
		if json.Unmarshal(raw, &hexID) == nil {
			if id, err := strconv.ParseUint(strings.TrimPrefix(hexID, "0x"), 16, 64); err == nil {
				sess.Chain = "eip155:" + strconv.FormatUint(id, 10)
			}
		}
	}
	return sess, nil
}

func (h *handshake) classify(ctx context.Context, err error) error {
	if h.ctx.Err() != nil {
		return connect.ErrAbandoned
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var pe *ProviderError
	if errors.As(err, &pe) && (pe.Code == CodeUserRejected || pe.Code == CodeUnauthorized) {
		return fmt.Errorf("%w: %v", connect.ErrRejected, pe)
	}
	return err
}

// mergeCancel returns a context cancelled when either parent ends.
func mergeCancel(ctx, other context.Context) (context.Context, func()) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
