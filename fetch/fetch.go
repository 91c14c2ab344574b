// Package fetch retrieves and validates authenticator documents.
//
// A URL source is expanded with the name and fetched with a single GET; there
// are no retries. Inline sources are parsed without any I/O. Every failure is
// a *Error whose Kind is ErrTimeout when the fetch deadline elapsed and
// ErrUnavailable otherwise. Cancellation of the caller's context is returned
// as the context error itself.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 64 << 10
	DefaultUserAgent    = "goNameAuth/1"
)

var (
	// ErrUnavailable covers network errors, non-2xx statuses and invalid documents.
	ErrUnavailable = errors.New("authenticator unavailable")
	// ErrTimeout means the fetch deadline elapsed.
	ErrTimeout = errors.New("authenticator fetch timed out")
)

// Error describes a failed fetch.
type Error struct {
	Kind   error
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.URL != "" {
		b.WriteString(": ")
		b.WriteString(e.URL)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// Config tunes a Fetcher.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// RequestsPerSecond paces outbound fetches; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Fetcher retrieves authenticator documents over HTTP.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
}

// New returns a Fetcher. A nil client uses http.DefaultClient; zero config
// fields take the package defaults.
func New(client *http.Client, cfg Config) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	f := &Fetcher{client: client, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return f
}

// Fetch returns the validated document published by source for name.
func (f *Fetcher) Fetch(ctx context.Context, source authdoc.Source, name string) (*authdoc.Document, error) {
	switch source.Kind {
	case authdoc.SourceInline:
		doc, err := authdoc.Parse(source.Inline)
		if err != nil {
			return nil, &Error{Kind: ErrUnavailable, Err: err}
		}
		return doc, nil
	case authdoc.SourceURL:
	default:
		return nil, &Error{Kind: ErrUnavailable, Err: authdoc.ErrInvalidSource}
	}

	url, err := source.Expand(name)
	if err != nil {
		return nil, &Error{Kind: ErrUnavailable, Err: err}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	body, status, err := f.get(fetchCtx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) || errors.Is(err, errPacingDeadline) || isNetTimeout(err) {
			return nil, &Error{Kind: ErrTimeout, URL: url, Err: err}
		}
		return nil, &Error{Kind: ErrUnavailable, URL: url, Status: status, Err: err}
	}

	doc, err := authdoc.Parse(body)
	if err != nil {
		return nil, &Error{Kind: ErrUnavailable, URL: url, Status: status, Err: err}
	}
	return doc, nil
}

var (
	errBodyTooLarge   = errors.New("document exceeds size limit")
	errPacingDeadline = errors.New("pacing delay exceeds fetch deadline")
)

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			// Wait fails early, with ctx still live, when the delay would pass the deadline.
			if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
				return nil, 0, fmt.Errorf("%w: %v", errPacingDeadline, err)
			}
			return nil, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, resp.StatusCode, errBodyTooLarge
	}
	return body, resp.StatusCode, nil
}

func isNetTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
