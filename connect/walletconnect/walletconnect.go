// Package walletconnect implements the "wc" connection: a pairing URI is shown
// to the user (as a QR code or a wallet link) and the wallet answers over a
// publish/subscribe relay.
//
// Pairing URIs have the form
//
//	wc:<topic>@2?relay-protocol=irn&symKey=<hex>
//
// where topic is hex(sha256(symKey)). Relay messages are type-0 envelopes
// sealed with ChaCha20-Poly1305 under symKey. The wallet approves with a
// wc_sessionSettle request carrying CAIP-10 accounts, or rejects with a
// JSON-RPC error.
package walletconnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/internal"
)

const (
	// RelayProtocol is the relay protocol named in pairing URIs.
	RelayProtocol = "irn"

	methodSettle = "wc_sessionSettle"
)

// Connector initiates relay handshakes.
type Connector struct {
	relay Relay
}

// New returns a Connector publishing through relay.
func New(relay Relay) *Connector {
	return &Connector{relay: relay}
}

// PairingURI formats the URI for key.
func PairingURI(key internal.SymKey) string {
	return fmt.Sprintf("wc:%s@2?relay-protocol=%s&symKey=%s", key.Topic(), RelayProtocol, key)
}

// ParsePairingURI extracts topic and key from a pairing URI and checks that
// they belong together.
func ParsePairingURI(uri string) (string, internal.SymKey, error) {
	rest, ok := strings.CutPrefix(uri, "wc:")
	if !ok {
		return "", internal.SymKey{}, fmt.Errorf("walletconnect: not a pairing uri: %q", uri)
	}
	head, query, _ := strings.Cut(rest, "?")
	topic, version, _ := strings.Cut(head, "@")
	if version != "2" {
		return "", internal.SymKey{}, fmt.Errorf("walletconnect: unsupported version %q", version)
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return "", internal.SymKey{}, err
	}
	key, err := internal.ParseSymKey(q.Get("symKey"))
	if err != nil {
		return "", internal.SymKey{}, fmt.Errorf("walletconnect: symKey: %w", err)
	}
	if key.Topic() != topic {
		return "", internal.SymKey{}, errors.New("walletconnect: topic does not match symKey")
	}
	return topic, key, nil
}

// Initiate subscribes to a fresh pairing topic. It needs a surface to present
// the URI on: a QR renderer or a link opener.
func (c *Connector) Initiate(ctx context.Context, spec authdoc.FlowSpec, caps connect.CapabilityContext) (connect.Handshake, error) {
	if spec.Connection != authdoc.ConnectionWalletConnect {
		return nil, fmt.Errorf("%w: connection %q", connect.ErrUnsupported, spec.Connection)
	}
	if !caps.CanShowQR && !caps.CanOpenLinks {
		return nil, fmt.Errorf("%w: no QR or link surface", connect.ErrUnsupported)
	}
	if c.relay == nil {
		return nil, fmt.Errorf("%w: no relay configured", connect.ErrUnsupported)
	}

	key, err := internal.NewSymKey()
	if err != nil {
		return nil, err
	}
	sub, err := c.relay.Subscribe(ctx, key.Topic())
	if err != nil {
		return nil, fmt.Errorf("walletconnect: subscribe: %w", err)
	}

	pairing := PairingURI(key)
	uri := pairing
	if spec.URI != "" {
		uri = walletLink(spec.URI, pairing)
	}
	return &handshake{
		key:       key,
		uri:       uri,
		sub:       sub,
		abandoned: make(chan struct{}),
	}, nil
}

// walletLink appends the pairing URI to a wallet-specific universal link.
func walletLink(base, pairing string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "uri=" + url.QueryEscape(pairing)
}

type handshake struct {
	key       internal.SymKey
	uri       string
	sub       Subscription
	abandoned chan struct{}
	once      sync.Once
}

func (h *handshake) URI() string { return h.uri }

func (h *handshake) Abandon() {
	h.once.Do(func() {
		close(h.abandoned)
		_ = h.sub.Close()
	})
}

type walletMessage struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type settleParams struct {
	Namespaces map[string]struct {
		Accounts []string `json:"accounts"`
	} `json:"namespaces"`
}

func (h *handshake) Wait(ctx context.Context) (*connect.Session, error) {
	defer h.Abandon()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-h.abandoned:
			return nil, connect.ErrAbandoned
		case m, ok := <-h.sub.Messages():
			if !ok {
				select {
				case <-h.abandoned:
					return nil, connect.ErrAbandoned
				default:
					return nil, ErrRelayClosed
				}
			}
			sess, done, err := h.handle(m)
			if done {
				return sess, err
			}
		}
	}
}

// handle decodes one relay message. Messages that do not decrypt or are not
// part of the pairing exchange are skipped.
func (h *handshake) handle(m string) (*connect.Session, bool, error) {
	plain, err := open(h.key, m)
	if err != nil {
		return nil, false, nil
	}
	var msg walletMessage
	if err := json.Unmarshal(plain, &msg); err != nil {
		return nil, false, nil
	}
	if msg.Error != nil {
		return nil, true, fmt.Errorf("%w: %s", connect.ErrRejected, msg.Error.Message)
	}
	if msg.Method != methodSettle {
		return nil, false, nil
	}

	var p settleParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return nil, true, fmt.Errorf("walletconnect: settle params: %w", err)
	}
	ns := make([]string, 0, len(p.Namespaces))
	for name := range p.Namespaces {
		if name != "eip155" {
			ns = append(ns, name)
		}
	}
	sort.Strings(ns)
	// eip155 first, then whatever else the wallet settled.
	for _, name := range append([]string{"eip155"}, ns...) {
		for _, account := range p.Namespaces[name].Accounts {
			chain, addr, ok := splitAccount(account)
			if ok {
				return &connect.Session{
					Address:    addr,
					Chain:      chain,
					Connection: authdoc.ConnectionWalletConnect,
					Handle:     h.key.Topic(),
				}, true, nil
			}
		}
	}
	return nil, true, fmt.Errorf("%w: wallet settled without accounts", connect.ErrRejected)
}

// splitAccount splits a CAIP-10 account id "<namespace>:<reference>:<address>".
func splitAccount(account string) (string, string, bool) {
	i := strings.LastIndex(account, ":")
	if i <= 0 || i == len(account)-1 {
		return "", "", false
	}
	chain := account[:i]
	if strings.Count(chain, ":") != 1 {
		return "", "", false
	}
	return chain, account[i+1:], true
}

// Approve is the wallet side of a pairing: it seals a wc_sessionSettle for
// accounts and publishes it on the pairing topic. Used by relay-backed test
// wallets and the demo server.
func Approve(ctx context.Context, relay Relay, pairingURI string, accounts ...string) error {
	topic, key, err := ParsePairingURI(pairingURI)
	if err != nil {
		return err
	}
	byNS := map[string][]string{}
	for _, a := range accounts {
		chain, _, ok := splitAccount(a)
		if !ok {
			return fmt.Errorf("walletconnect: account %q is not CAIP-10", a)
		}
		ns, _, _ := strings.Cut(chain, ":")
		byNS[ns] = append(byNS[ns], a)
	}
	namespaces := map[string]any{}
	for ns, list := range byNS {
		namespaces[ns] = map[string]any{"accounts": list}
	}
	return publish(ctx, relay, topic, key, map[string]any{
		"id":      1,
		"jsonrpc": "2.0",
		"method":  methodSettle,
		"params":  map[string]any{"namespaces": namespaces},
	})
}

// Reject publishes a JSON-RPC error on the pairing topic.
func Reject(ctx context.Context, relay Relay, pairingURI, reason string) error {
	topic, key, err := ParsePairingURI(pairingURI)
	if err != nil {
		return err
	}
	return publish(ctx, relay, topic, key, map[string]any{
		"id":      1,
		"jsonrpc": "2.0",
		"error":   map[string]any{"code": 5000, "message": reason},
	})
}

func publish(ctx context.Context, relay Relay, topic string, key internal.SymKey, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env, err := seal(key, raw)
	if err != nil {
		return err
	}
	return relay.Publish(ctx, topic, env)
}
