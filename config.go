package goNameAuth

import (
	"errors"
	"strings"
	"time"
)

// Config holds every engine setting. Obtain defaults through [New] and
// override them with [Builder.WithConfig] or the individual With* setters.
type Config struct {
	Resolution ResolutionConfig
	Fetch      FetchConfig
	Flow       FlowConfig
	Validation ValidationConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
RESOLUTION CONFIG
====================================
*/

// ResolutionConfig bounds name resolution.
type ResolutionConfig struct {
	// Timeout bounds each resolver call made by the engine. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
}

/*
====================================
FETCH CONFIG
====================================
*/

// FetchConfig tunes the authenticator document fetcher.
type FetchConfig struct {
	Timeout           time.Duration
	MaxBodyBytes      int64
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig tunes flow execution.
type FlowConfig struct {
	// AwaitTimeout bounds each AwaitingUser suspension. Zero waits until the
	// wallet answers or the attempt is cancelled.
	AwaitTimeout time.Duration
	// EventBuffer is how many progress events Attempt.Events holds. Events that
	// do not fit are dropped; EventFinished always has a reserved slot. Must be >= 1.
	EventBuffer int
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig holds the address match policy.
type ValidationConfig struct {
	// StrictAddressMatch turns document and session address mismatches into
	// ErrAddressMismatch failures instead of warnings.
	StrictAddressMatch bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls Redis-backed attempt throttling. It requires
// [Builder.WithRedis] when Enabled.
type RateLimitConfig struct {
	Enabled          bool
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
	RedisPrefix      string
}

/*
====================================
AUDIT + METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds each sink delivery. Zero means no bound.
	SinkTimeout time.Duration
}

// MetricsConfig controls in-process counters and the login latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

func defaultConfig() Config {
	return Config{
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			MaxBodyBytes: 64 << 10,
			UserAgent:    "goNameAuth/1",
		},
		Flow: FlowConfig{
			EventBuffer: 64,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 10,
			Cooldown:    5 * time.Minute,
			RedisPrefix: "lwn",
		},
		Audit: AuditConfig{
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
	}
}

// DefaultConfig returns the configuration a fresh Builder starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Resolution.Timeout < 0 {
		return errors.New("Resolution Timeout must be >= 0")
	}

	if c.Fetch.Timeout <= 0 {
		return errors.New("Fetch Timeout must be > 0")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return errors.New("Fetch MaxBodyBytes must be > 0")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return errors.New("Fetch RequestsPerSecond must be >= 0")
	}
	if c.Fetch.RequestsPerSecond > 0 && c.Fetch.Burst < 0 {
		return errors.New("Fetch Burst must be >= 0")
	}

	if c.Flow.AwaitTimeout < 0 {
		return errors.New("Flow AwaitTimeout must be >= 0")
	}
	if c.Flow.EventBuffer < 1 {
		return errors.New("Flow EventBuffer must be >= 1")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Cooldown <= 0 {
			return errors.New("RateLimit Cooldown must be > 0")
		}
		if strings.TrimSpace(c.RateLimit.RedisPrefix) == "" {
			return errors.New("RateLimit RedisPrefix must not be empty")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	return nil
}
