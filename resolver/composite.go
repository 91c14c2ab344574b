package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"go.uber.org/multierr"
)

// Composite tries resolvers in priority order. Each method is answered by the
// first resolver that does not report ErrNotFound or fail; address and
// authenticator may therefore come from different resolvers, but one answer is
// never assembled from several.
type Composite struct {
	resolvers   []Resolver
	callTimeout time.Duration
}

// NewComposite builds a composite; nil entries are dropped.
func NewComposite(resolvers ...Resolver) *Composite {
	c := &Composite{resolvers: make([]Resolver, 0, len(resolvers))}
	for _, r := range resolvers {
		if r != nil {
			c.resolvers = append(c.resolvers, r)
		}
	}
	return c
}

// WithCallTimeout bounds each member call by d. A member that overruns counts
// as errored and the next one is tried. Zero means no bound.
func (c *Composite) WithCallTimeout(d time.Duration) *Composite {
	c.callTimeout = d
	return c
}

func (c *Composite) Name() string { return "composite" }

// Len returns the number of underlying resolvers.
func (c *Composite) Len() int { return len(c.resolvers) }

func (c *Composite) ResolveName(ctx context.Context, name string) (string, error) {
	return first(ctx, c.resolvers, c.callTimeout, name, OpName, func(ctx context.Context, r Resolver) (string, error) {
		addr, err := r.ResolveName(ctx, name)
		if err == nil && addr == "" {
			return "", ErrNotFound
		}
		return addr, err
	})
}

func (c *Composite) ResolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error) {
	return first(ctx, c.resolvers, c.callTimeout, name, OpAuthenticator, func(ctx context.Context, r Resolver) (authdoc.Source, error) {
		src, err := r.ResolveAuthenticator(ctx, name)
		if err == nil && src.IsZero() {
			return authdoc.Source{}, ErrNotFound
		}
		return src, err
	})
}

func first[T any](ctx context.Context, resolvers []Resolver, timeout time.Duration, name string, op Op, call func(context.Context, Resolver) (T, error)) (T, error) {
	var (
		zero    T
		errs    error
		errored int
	)

	for i, r := range resolvers {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := callOne(ctx, r, timeout, call)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		errored++
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", nameOf(r, i), err))
	}

	if errs == nil {
		errs = ErrNotFound
	}
	return zero, &ResolutionError{
		Name:       name,
		Op:         op,
		AllErrored: len(resolvers) > 0 && errored == len(resolvers),
		Err:        errs,
	}
}

// callOne runs call under its own deadline so an overrun is charged to r
// alone while ctx stays live.
func callOne[T any](ctx context.Context, r Resolver, timeout time.Duration, call func(context.Context, Resolver) (T, error)) (T, error) {
	if timeout <= 0 {
		return call(ctx, r)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(callCtx, r)
}
