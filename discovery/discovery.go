// Package discovery keeps track of wallet providers present in the runtime.
//
// It follows the announce/request pattern of EIP-6963: wallets announce
// themselves with a ProviderInfo, and a host may ask every listener to
// re-announce. A legacy injected provider can be registered alongside them
// and is addressed by authdoc.InjectedURI.
//
// The registry is safe for concurrent use. Capabilities turns the current set
// into a connect.CapabilityContext the engine snapshots at filter time.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/google/uuid"
)

var (
	// ErrInvalidInfo is returned by Announce for malformed provider metadata.
	ErrInvalidInfo = errors.New("invalid provider info")
)

// Provider is an EIP-1193 style request channel into a wallet.
type Provider interface {
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// ProviderInfo is the metadata a wallet announces.
type ProviderInfo struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	// RDNS is the reverse-DNS identifier flows reference in their uri.
	RDNS string `json:"rdns"`
}

// NewProviderInfo fills a fresh UUIDv4 for a wallet announcing itself.
func NewProviderInfo(name, rdns, icon string) ProviderInfo {
	return ProviderInfo{UUID: uuid.NewString(), Name: name, Icon: icon, RDNS: rdns}
}

// Validate checks the fields Announce relies on.
func (p ProviderInfo) Validate() error {
	id, err := uuid.Parse(p.UUID)
	if err != nil {
		return fmt.Errorf("%w: uuid: %v", ErrInvalidInfo, err)
	}
	if id.Version() != 4 {
		return fmt.Errorf("%w: uuid must be version 4", ErrInvalidInfo)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInfo)
	}
	if !validRDNS(p.RDNS) {
		return fmt.Errorf("%w: rdns %q is not a reverse domain", ErrInvalidInfo, p.RDNS)
	}
	return nil
}

func validRDNS(s string) bool {
	if s == "" || s == authdoc.InjectedURI {
		return false
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" {
			return false
		}
	}
	return true
}

type entry struct {
	info     ProviderInfo
	provider Provider
}

// Registry is the set of announced providers.
type Registry struct {
	mu        sync.RWMutex
	byUUID    map[string]*entry
	byRDNS    map[string]*entry
	injected  Provider
	listeners []func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUUID: make(map[string]*entry),
		byRDNS: make(map[string]*entry),
	}
}

// Announce registers or refreshes a provider. Re-announcing the same UUID
// replaces the previous entry; a new UUID for a known RDNS supersedes it.
func (r *Registry) Announce(info ProviderInfo, p Provider) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: nil provider", ErrInvalidInfo)
	}

	e := &entry{info: info, provider: p}
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUUID[info.UUID]; ok && old.info.RDNS != info.RDNS {
		delete(r.byRDNS, old.info.RDNS)
	}
	if old, ok := r.byRDNS[info.RDNS]; ok && old.info.UUID != info.UUID {
		delete(r.byUUID, old.info.UUID)
	}
	r.byUUID[info.UUID] = e
	r.byRDNS[info.RDNS] = e
	return nil
}

// Withdraw removes the provider announced under uuid.
func (r *Registry) Withdraw(uuid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byUUID[uuid]; ok {
		delete(r.byUUID, uuid)
		delete(r.byRDNS, e.info.RDNS)
	}
}

// SetInjected registers (or clears, with nil) the legacy injected provider.
func (r *Registry) SetInjected(p Provider) {
	r.mu.Lock()
	r.injected = p
	r.mu.Unlock()
}

// OnRequest adds a listener invoked by RequestProviders. Wallet adapters use it
// to re-announce.
func (r *Registry) OnRequest(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// RequestProviders asks every listener to announce again.
func (r *Registry) RequestProviders() {
	r.mu.RLock()
	listeners := append([]func(){}, r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Lookup returns the provider for a flow uri. Empty and "injected" select the
// injected provider.
func (r *Registry) Lookup(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == "" || id == authdoc.InjectedURI {
		return r.injected, r.injected != nil
	}
	e, ok := r.byRDNS[id]
	if !ok {
		return nil, false
	}
	return e.provider, true
}

// Providers lists announced providers ordered by RDNS.
func (r *Registry) Providers() []ProviderInfo {
	r.mu.RLock()
	out := make([]ProviderInfo, 0, len(r.byRDNS))
	for _, e := range r.byRDNS {
		out = append(out, e.info)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RDNS < out[j].RDNS })
	return out
}

// Capabilities snapshots the registry into a capability context for platform.
// The injected provider, when present, is listed under authdoc.InjectedURI.
func (r *Registry) Capabilities(platform authdoc.Platform) connect.CapabilityContext {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byRDNS)+1)
	for rdns := range r.byRDNS {
		ids = append(ids, rdns)
	}
	if r.injected != nil {
		ids = append(ids, authdoc.InjectedURI)
	}
	r.mu.RUnlock()
	return connect.NewCapabilityContext(platform, ids...)
}
