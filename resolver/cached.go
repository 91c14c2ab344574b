package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CacheConfig controls a Cached resolver.
type CacheConfig struct {
	// Size bounds the number of entries per method.
	Size int
	// TTL bounds how long a positive answer is served.
	TTL time.Duration
	// NegativeTTL, when positive, also caches ErrNotFound answers.
	NegativeTTL time.Duration
	// CallTimeout bounds a shared upstream call. The call is detached from
	// the caller that started it, so this is its only deadline.
	CallTimeout time.Duration
}

type cachedName struct {
	addr string
	err  error
}

type cachedSource struct {
	src authdoc.Source
	err error
}

// Cached memoises another resolver. Concurrent lookups of the same name share
// one upstream call. Errors other than ErrNotFound are never cached.
type Cached struct {
	next     Resolver
	names    *expirable.LRU[string, cachedName]
	sources  *expirable.LRU[string, cachedSource]
	negNames *expirable.LRU[string, cachedName]
	negSrcs  *expirable.LRU[string, cachedSource]
	group    singleflight.Group
	timeout  time.Duration
}

// NewCached wraps next. Zero Size falls back to 1024, zero TTL to one minute
// and zero CallTimeout to ten seconds.
func NewCached(next Resolver, cfg CacheConfig) *Cached {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	c := &Cached{
		next:    next,
		timeout: cfg.CallTimeout,
		names:   expirable.NewLRU[string, cachedName](cfg.Size, nil, cfg.TTL),
		sources: expirable.NewLRU[string, cachedSource](cfg.Size, nil, cfg.TTL),
	}
	if cfg.NegativeTTL > 0 {
		c.negNames = expirable.NewLRU[string, cachedName](cfg.Size, nil, cfg.NegativeTTL)
		c.negSrcs = expirable.NewLRU[string, cachedSource](cfg.Size, nil, cfg.NegativeTTL)
	}
	return c
}

func (c *Cached) Name() string {
	if n, ok := c.next.(Named); ok {
		return "cached(" + n.Name() + ")"
	}
	return "cached"
}

// Purge drops every cached answer.
func (c *Cached) Purge() {
	c.names.Purge()
	c.sources.Purge()
	if c.negNames != nil {
		c.negNames.Purge()
		c.negSrcs.Purge()
	}
}

func (c *Cached) ResolveName(ctx context.Context, name string) (string, error) {
	key := normalizedKey(name)
	if v, ok := c.names.Get(key); ok {
		return v.addr, v.err
	}
	if c.negNames != nil {
		if v, ok := c.negNames.Get(key); ok {
			return v.addr, v.err
		}
	}

	v, err := c.shared(ctx, "n:"+key, func(callCtx context.Context) (any, error) {
		addr, err := c.next.ResolveName(callCtx, name)
		switch {
		case err == nil:
			c.names.Add(key, cachedName{addr: addr})
		case errors.Is(err, ErrNotFound) && c.negNames != nil:
			c.negNames.Add(key, cachedName{err: err})
		}
		return addr, err
	})
	addr, _ := v.(string)
	return addr, err
}

func (c *Cached) ResolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error) {
	key := normalizedKey(name)
	if v, ok := c.sources.Get(key); ok {
		return v.src, v.err
	}
	if c.negSrcs != nil {
		if v, ok := c.negSrcs.Get(key); ok {
			return v.src, v.err
		}
	}

	v, err := c.shared(ctx, "a:"+key, func(callCtx context.Context) (any, error) {
		src, err := c.next.ResolveAuthenticator(callCtx, name)
		switch {
		case err == nil:
			c.sources.Add(key, cachedSource{src: src})
		case errors.Is(err, ErrNotFound) && c.negSrcs != nil:
			c.negSrcs.Add(key, cachedSource{err: err})
		}
		return src, err
	})
	src, _ := v.(authdoc.Source)
	return src, err
}

// shared runs fn once per key across concurrent callers. The upstream call
// keeps the first caller's values but not its cancellation, and each caller
// stops waiting when its own ctx ends.
func (c *Cached) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(callCtx)
	})

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
