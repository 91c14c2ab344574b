// Package ens resolves names through the Ethereum Name Service by issuing
// eth_call requests against a JSON-RPC endpoint.
//
// Lookups walk registry → resolver → addr/text. A name with no resolver, a
// zero address or an empty text record reports resolver.ErrNotFound.
package ens

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/MrEthical07/goNameAuth/address"
	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/resolver"
)

// DefaultRegistry is the ENS registry address on Ethereum mainnet.
const DefaultRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

// RPCError is a JSON-RPC error object returned by the endpoint.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ens: rpc error %d: %s", e.Code, e.Message)
}

// Config configures a Resolver.
type Config struct {
	// Endpoint is the JSON-RPC URL.
	Endpoint string
	// Registry overrides DefaultRegistry.
	Registry string
	// TextKey is the text record holding the authenticator; defaults to
	// authdoc.TextRecordKey.
	TextKey string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Resolver is an ENS-backed resolver.Resolver.
type Resolver struct {
	endpoint string
	registry string
	textKey  string
	client   *http.Client
	nextID   atomic.Uint64
}

// New validates cfg and returns a Resolver.
func New(cfg Config) (*Resolver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("ens: endpoint is required")
	}
	registry := cfg.Registry
	if registry == "" {
		registry = DefaultRegistry
	}
	if _, err := address.Canonical("eip155:1", registry); err != nil {
		return nil, fmt.Errorf("ens: registry: %w", err)
	}
	key := cfg.TextKey
	if key == "" {
		key = authdoc.TextRecordKey
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{endpoint: cfg.Endpoint, registry: registry, textKey: key, client: client}, nil
}

func (r *Resolver) Name() string { return "ens" }

// ResolveName returns the EIP-55 checksummed address set for name.
func (r *Resolver) ResolveName(ctx context.Context, name string) (string, error) {
	node, res, err := r.lookupResolver(ctx, name)
	if err != nil {
		return "", err
	}
	ret, err := r.call(ctx, res, encodeNodeCall(selAddr, node))
	if err != nil {
		return "", err
	}
	addr, ok, err := decodeAddress(ret)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", resolver.ErrNotFound
	}
	return address.Checksum(addr)
}

// ResolveAuthenticator reads the authenticator text record for name.
func (r *Resolver) ResolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error) {
	node, res, err := r.lookupResolver(ctx, name)
	if err != nil {
		return authdoc.Source{}, err
	}
	ret, err := r.call(ctx, res, encodeTextCall(node, r.textKey))
	if err != nil {
		return authdoc.Source{}, err
	}
	record, err := decodeString(ret)
	if err != nil {
		return authdoc.Source{}, err
	}
	if strings.TrimSpace(record) == "" {
		return authdoc.Source{}, resolver.ErrNotFound
	}
	return authdoc.ParseSource(record)
}

func (r *Resolver) lookupResolver(ctx context.Context, name string) ([32]byte, string, error) {
	norm, err := resolver.Normalize(name)
	if err != nil {
		return [32]byte{}, "", err
	}
	node := Namehash(norm)
	ret, err := r.call(ctx, r.registry, encodeNodeCall(selResolver, node))
	if err != nil {
		return node, "", err
	}
	res, ok, err := decodeAddress(ret)
	if err != nil {
		return node, "", err
	}
	if !ok {
		return node, "", resolver.ErrNotFound
	}
	return node, res, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type callMsg struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type rpcResponse struct {
	Result *string   `json:"result"`
	Error  *RPCError `json:"error"`
}

func (r *Resolver) call(ctx context.Context, to string, data []byte) ([]byte, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      r.nextID.Add(1),
		Method:  "eth_call",
		Params:  []any{callMsg{To: to, Data: "0x" + hex.EncodeToString(data)}, "latest"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ens: rpc status %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("ens: decode rpc response: %w", err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	if out.Result == nil {
		return nil, errors.New("ens: rpc response without result")
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(*out.Result, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ens: rpc result: %w", err)
	}
	return raw, nil
}
