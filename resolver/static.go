package resolver

import (
	"context"
	"sync"

	"github.com/MrEthical07/goNameAuth/authdoc"
)

// Record is the data a Static resolver holds for one name.
type Record struct {
	Address       string
	Authenticator authdoc.Source
}

// Static is an in-memory resolver, used for fixtures and local overrides.
type Static struct {
	name    string
	mu      sync.RWMutex
	records map[string]Record
}

// NewStatic returns an empty Static resolver identified by label in diagnostics.
func NewStatic(label string) *Static {
	return &Static{name: label, records: make(map[string]Record)}
}

func (s *Static) Name() string { return s.name }

// Set replaces the record for name.
func (s *Static) Set(name string, rec Record) {
	key := normalizedKey(name)
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
}

// Delete removes name.
func (s *Static) Delete(name string) {
	key := normalizedKey(name)
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

func (s *Static) lookup(name string) (Record, bool) {
	key := normalizedKey(name)
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	return rec, ok
}

func (s *Static) ResolveName(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, ok := s.lookup(name)
	if !ok || rec.Address == "" {
		return "", ErrNotFound
	}
	return rec.Address, nil
}

func (s *Static) ResolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error) {
	if err := ctx.Err(); err != nil {
		return authdoc.Source{}, err
	}
	rec, ok := s.lookup(name)
	if !ok || rec.Authenticator.IsZero() {
		return authdoc.Source{}, ErrNotFound
	}
	return rec.Authenticator, nil
}

func normalizedKey(name string) string {
	if n, err := Normalize(name); err == nil {
		return n
	}
	return name
}
