package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goNameAuth "github.com/MrEthical07/goNameAuth"
	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/MrEthical07/goNameAuth/resolver/directory"
	"github.com/MrEthical07/goNameAuth/resolver/dnstxt"
	"github.com/MrEthical07/goNameAuth/resolver/ens"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type options struct {
	name        string
	platform    string
	providers   string
	links       bool
	qr          bool
	ensEndpoint string
	dnsServer   string
	redisAddr   string
	seedAddress string
	seedAuth    string
	timeout     time.Duration
	repeat      int
	concurrency int
	jsonOut     bool
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.name, "name", "", "name to probe (required)")
	flag.StringVar(&opts.platform, "platform", string(authdoc.PlatformBrowser), "platform the login would run on")
	flag.StringVar(&opts.providers, "providers", "", "comma-separated provider identifiers present in the environment")
	flag.BoolVar(&opts.links, "links", true, "environment can open links")
	flag.BoolVar(&opts.qr, "qr", true, "environment can show QR codes")
	flag.StringVar(&opts.ensEndpoint, "ens-endpoint", "", "Ethereum JSON-RPC URL for ENS resolution")
	flag.StringVar(&opts.dnsServer, "dns-server", "", "DNS server host:port for TXT resolution; empty disables it")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "directory redis address; if empty, REDIS_ADDR env or miniredis is used")
	flag.StringVar(&opts.seedAddress, "seed-address", "", "address to seed into the miniredis directory for -name")
	flag.StringVar(&opts.seedAuth, "seed-authenticator", "", "authenticator record to seed into the miniredis directory for -name")
	flag.DurationVar(&opts.timeout, "timeout", 15*time.Second, "overall probe timeout")
	flag.IntVar(&opts.repeat, "repeat", 1, "number of plans to run; values above 1 print latency percentiles")
	flag.IntVar(&opts.concurrency, "concurrency", 1, "concurrent workers when repeat > 1")
	flag.BoolVar(&opts.jsonOut, "json", false, "print the plan as JSON")
	flag.BoolVar(&opts.verbose, "v", false, "debug logging")
	flag.Parse()

	if strings.TrimSpace(opts.name) == "" {
		fmt.Fprintln(os.Stderr, "-name is required")
		os.Exit(2)
	}
	if opts.repeat <= 0 || opts.concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "repeat and concurrency must be > 0")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(opts, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	resolvers, cleanup, err := buildResolvers(ctx, opts, out)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := goNameAuth.New().
		WithResolvers(resolvers...).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	caps := connect.NewCapabilityContext(authdoc.Platform(opts.platform), splitList(opts.providers)...)
	caps.CanOpenLinks = opts.links
	caps.CanShowQR = opts.qr

	if opts.repeat > 1 {
		s := runRepeated(ctx, engine, opts.name, caps, opts.repeat, opts.concurrency)
		printStats(out, "plan", s)
		return nil
	}

	plan, err := engine.Plan(ctx, opts.name, caps)
	if err != nil {
		return err
	}
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(planView(plan))
	}
	printPlan(out, plan)
	return nil
}

// buildResolvers returns the probe's resolvers in priority order: directory,
// then DNS TXT, then ENS.
func buildResolvers(ctx context.Context, opts options, out io.Writer) ([]resolver.Resolver, func(), error) {
	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		client  redis.UniversalClient
		cleanup func()
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Fprintf(out, "using miniredis directory at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Fprintf(out, "using redis directory at %s\n", addr)
	}

	dir := directory.New(client, "")
	if opts.seedAddress != "" || opts.seedAuth != "" {
		entry := directory.Entry{Address: opts.seedAddress, Authenticator: opts.seedAuth}
		if err := dir.Put(ctx, opts.name, entry, 0); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("seed directory: %w", err)
		}
	}

	resolvers := []resolver.Resolver{dir}

	if opts.dnsServer != "" {
		txt, err := dnstxt.New(dnstxt.Config{Server: opts.dnsServer})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		resolvers = append(resolvers, txt)
	}

	if opts.ensEndpoint != "" {
		r, err := ens.New(ens.Config{Endpoint: opts.ensEndpoint})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		resolvers = append(resolvers, resolver.NewCached(r, resolver.CacheConfig{TTL: time.Minute}))
	}

	return resolvers, cleanup, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type flowView struct {
	Index      int    `json:"index"`
	Platform   string `json:"platform,omitempty"`
	Connection string `json:"connection"`
	URI        string `json:"uri,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type planJSON struct {
	Name          string     `json:"name"`
	Address       string     `json:"address"`
	Authenticator string     `json:"authenticator"`
	Chain         string     `json:"chain,omitempty"`
	Candidates    []flowView `json:"candidates"`
	Excluded      []flowView `json:"excluded"`
	Warnings      []string   `json:"warnings,omitempty"`
}

func planView(p *goNameAuth.LoginPlan) planJSON {
	v := planJSON{
		Name:          p.Identity.Name,
		Address:       p.Identity.Address,
		Authenticator: p.Identity.Source.String(),
		Chain:         p.Document.Chain,
		Candidates:    make([]flowView, 0, len(p.Candidates)),
		Excluded:      make([]flowView, 0, len(p.Excluded)),
	}
	for _, c := range p.Candidates {
		v.Candidates = append(v.Candidates, flowView{
			Index:      c.Index,
			Platform:   string(c.Spec.Platform),
			Connection: string(c.Spec.Connection),
			URI:        c.Spec.URI,
		})
	}
	for _, x := range p.Excluded {
		v.Excluded = append(v.Excluded, flowView{
			Index:      x.Index,
			Platform:   string(x.Spec.Platform),
			Connection: string(x.Spec.Connection),
			URI:        x.Spec.URI,
			Reason:     x.Reason,
		})
	}
	for _, w := range p.Warnings {
		v.Warnings = append(v.Warnings, w.Code+": "+w.Message)
	}
	return v
}

func printPlan(out io.Writer, p *goNameAuth.LoginPlan) {
	fmt.Fprintf(out, "name:          %s\n", p.Identity.Name)
	fmt.Fprintf(out, "address:       %s\n", p.Identity.Address)
	fmt.Fprintf(out, "authenticator: %s\n", p.Identity.Source)
	if p.Document.Chain != "" {
		fmt.Fprintf(out, "chain:         %s\n", p.Document.Chain)
	}
	fmt.Fprintf(out, "candidates (%d):\n", len(p.Candidates))
	for _, c := range p.Candidates {
		fmt.Fprintf(out, "  [%d] %s\n", c.Index, c.Spec)
	}
	fmt.Fprintf(out, "excluded (%d):\n", len(p.Excluded))
	for _, x := range p.Excluded {
		fmt.Fprintf(out, "  [%d] %s (%s)\n", x.Index, x.Spec, x.Reason)
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(out, "warning: %s: %s\n", w.Code, w.Message)
	}
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func runRepeated(ctx context.Context, engine *goNameAuth.Engine, name string, caps connect.CapabilityContext, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := engine.Plan(ctx, name, caps)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					if errors.Is(err, context.DeadlineExceeded) {
						return
					}
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func computeStats(total time.Duration, latencies []time.Duration, failures int64) phaseStats {
	samples := append([]time.Duration(nil), latencies...)
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	s := phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		s.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return s
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
