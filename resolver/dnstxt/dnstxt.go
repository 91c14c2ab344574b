// Package dnstxt resolves names from DNS TXT records.
//
// Records live under a fixed prefix label:
//
//	_lwn.<name> TXT "address=<account>"
//	_lwn.<name> TXT "authenticator=<url template or inline JSON>"
//
// A TXT string split into several character-strings is joined before parsing.
// Unrecognised records are ignored.
package dnstxt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/resolver"
	"github.com/miekg/dns"
)

const (
	// DefaultPrefix is the label queried in front of every name.
	DefaultPrefix = "_lwn."
	// DefaultTimeout bounds a single exchange.
	DefaultTimeout = 5 * time.Second

	addressKey       = "address="
	authenticatorKey = authdoc.TextRecordKey + "="
)

// ErrServerFailure reports a DNS response code other than success or NXDOMAIN.
var ErrServerFailure = errors.New("dnstxt: server failure")

// Config configures a Resolver.
type Config struct {
	// Server is the host:port of the recursive resolver to query.
	Server string
	// Prefix overrides DefaultPrefix.
	Prefix string
	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
	// Net is "udp" (default) or "tcp".
	Net string
}

// Resolver queries TXT records through a single upstream server.
type Resolver struct {
	server string
	prefix string
	client *dns.Client
}

// New returns a Resolver. An empty Server falls back to the first nameserver
// in /etc/resolv.conf.
func New(cfg Config) (*Resolver, error) {
	server := cfg.Server
	if server == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("dnstxt: no server configured: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, errors.New("dnstxt: no server configured")
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		server: server,
		prefix: prefix,
		client: &dns.Client{Net: cfg.Net, Timeout: timeout},
	}, nil
}

func (r *Resolver) Name() string { return "dnstxt" }

func (r *Resolver) ResolveName(ctx context.Context, name string) (string, error) {
	v, err := r.lookup(ctx, name, addressKey)
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *Resolver) ResolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error) {
	v, err := r.lookup(ctx, name, authenticatorKey)
	if err != nil {
		return authdoc.Source{}, err
	}
	return authdoc.ParseSource(v)
}

func (r *Resolver) lookup(ctx context.Context, name, key string) (string, error) {
	records, err := r.txt(ctx, name)
	if err != nil {
		return "", err
	}
	for _, rec := range records {
		if v, ok := strings.CutPrefix(rec, key); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, nil
			}
		}
	}
	return "", resolver.ErrNotFound
}

func (r *Resolver) txt(ctx context.Context, name string) ([]string, error) {
	norm, err := resolver.Normalize(name)
	if err != nil {
		return nil, err
	}
	ascii, err := toASCII(norm)
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(r.prefix+ascii), dns.TypeTXT)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("dnstxt: exchange: %w", err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, resolver.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: %s", ErrServerFailure, dns.RcodeToString[in.Rcode])
	}

	var out []string
	for _, rr := range in.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, unescape(strings.Join(txt.Txt, "")))
		}
	}
	return out, nil
}

// unescape reverses the presentation-format escaping miekg/dns applies to
// character-strings (\" \\ and \DDD).
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		if i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) {
			v := int(s[i+1]-'0')*100 + int(s[i+2]-'0')*10 + int(s[i+3]-'0')
			if v <= 255 {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i+1])
		i++
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
