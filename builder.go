package goNameAuth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/fetch"
	"github.com/MrEthical07/goNameAuth/internal/audit"
	"github.com/MrEthical07/goNameAuth/internal/rate"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can build exactly once.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	resolvers  []resolver.Resolver
	httpClient *http.Client
	connectors map[authdoc.Connection]connect.Connector
	auditSink  AuditSink
	logger     *slog.Logger

	built bool
}

// New returns a Builder holding the default configuration.
func New() *Builder {
	return &Builder{
		config:     defaultConfig(),
		connectors: make(map[authdoc.Connection]connect.Connector),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithResolvers appends resolvers in priority order: earlier resolvers win.
func (b *Builder) WithResolvers(resolvers ...resolver.Resolver) *Builder {
	b.resolvers = append(b.resolvers, resolvers...)
	return b
}

// WithHTTPClient sets the client used to fetch authenticator documents.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithConnector registers the mechanism for one connection kind, replacing any
// earlier registration. Flows whose connection has no connector are skipped.
func (b *Builder) WithConnector(conn authdoc.Connection, connector connect.Connector) *Builder {
	if connector == nil {
		delete(b.connectors, conn)
		return b
	}
	b.connectors[conn] = connector
	return b
}

// WithRedis sets the client used for attempt throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) WithStrictAddressMatch(strict bool) *Builder {
	b.config.Validation.StrictAddressMatch = strict
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	composite := resolver.NewComposite(b.resolvers...).WithCallTimeout(cfg.Resolution.Timeout)
	if composite.Len() == 0 {
		return nil, errors.New("at least one resolver required")
	}

	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	connectors := make(map[authdoc.Connection]connect.Connector, len(b.connectors))
	for conn, c := range b.connectors {
		connectors[conn] = c
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		resolver:   composite,
		connectors: connectors,
		logger:     logger.With("component", "goNameAuth"),
	}

	engine.fetcher = fetch.New(b.httpClient, fetch.Config{
		Timeout:           cfg.Fetch.Timeout,
		MaxBodyBytes:      cfg.Fetch.MaxBodyBytes,
		UserAgent:         cfg.Fetch.UserAgent,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
	})

	if cfg.RateLimit.Enabled {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.RateLimit.RedisPrefix,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			MaxAttempts:      cfg.RateLimit.MaxAttempts,
			Cooldown:         cfg.RateLimit.Cooldown,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
		Logger:      logger,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
