package goNameAuth

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/fetch"
	"github.com/MrEthical07/goNameAuth/internal/audit"
	"github.com/MrEthical07/goNameAuth/internal/rate"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/google/uuid"
)

// Engine runs Login With Name attempts. It is read-only after Build and safe
// for concurrent use; attempts share no mutable state.
type Engine struct {
	config      Config
	resolver    *resolver.Composite
	fetcher     *fetch.Fetcher
	connectors  map[authdoc.Connection]connect.Connector
	rateLimiter *rate.Limiter
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	closed      atomic.Bool
}

// Close flushes pending audit events. Login and Start fail with
// ErrEngineNotReady afterwards; attempts already running are not interrupted.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closed.Store(true)
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.resolver != nil && !e.closed.Load()
}

// Login resolves req.Name and runs its flows to completion on the calling
// goroutine. Failures are returned as *LoginError; cancelling ctx ends the
// attempt with ErrCancelled.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	id := uuid.NewString()
	name, err := e.admit(ctx, id, req.Name)
	if err != nil {
		return nil, err
	}

	return e.run(ctx, id, name, req, req.Observer)
}

// Start validates and admits the attempt, then runs it in the background.
// ctx bounds the whole attempt; pass a context that outlives the request
// that started it when the user answers later.
func (e *Engine) Start(ctx context.Context, req LoginRequest) (*Attempt, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	id := uuid.NewString()
	name, err := e.admit(ctx, id, req.Name)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	attempt := newAttempt(id, name, e.config.Flow.EventBuffer, cancel)

	go func() {
		defer cancel()
		result, err := e.run(runCtx, id, name, req, func(ev Event) {
			if req.Observer != nil {
				req.Observer(ev)
			}
			attempt.publish(ev)
		})
		attempt.finish(result, err)
	}()

	return attempt, nil
}

// Plan resolves name, fetches its document and filters the flows for caps
// without attempting any of them.
func (e *Engine) Plan(ctx context.Context, name string, caps connect.CapabilityContext) (*LoginPlan, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	normalized, err := resolver.Normalize(name)
	if err != nil {
		return nil, &LoginError{Kind: ErrInvalidName, Name: name, Err: err}
	}

	return e.plan(ctx, normalized, caps)
}

func (e *Engine) connector(conn authdoc.Connection) (connect.Connector, bool) {
	c, ok := e.connectors[conn]
	return c, ok
}

// Resolution.Timeout is applied per resolver by the composite.
func (e *Engine) resolveName(ctx context.Context, name string) (string, error) {
	return e.resolver.ResolveName(ctx, name)
}

func (e *Engine) resolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error) {
	return e.resolver.ResolveAuthenticator(ctx, name)
}
