package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"golang.org/x/net/idna"
)

var (
	// ErrNotFound means the resolver has no answer for the name.
	ErrNotFound = errors.New("name not found")
	// ErrResolutionFailed is matched by every *ResolutionError.
	ErrResolutionFailed = errors.New("resolution failed")
	// ErrInvalidName is returned by Normalize.
	ErrInvalidName = errors.New("invalid name")
)

// Resolver is the naming-system capability.
type Resolver interface {
	// ResolveName returns the address bound to name, or ErrNotFound.
	ResolveName(ctx context.Context, name string) (string, error)
	// ResolveAuthenticator returns the parsed authenticator text record, or ErrNotFound.
	ResolveAuthenticator(ctx context.Context, name string) (authdoc.Source, error)
}

// Named is implemented by resolvers that can identify themselves in diagnostics.
type Named interface {
	Name() string
}

// Op identifies which Resolver method a ResolutionError belongs to.
type Op string

const (
	OpName          Op = "name"
	OpAuthenticator Op = "authenticator"
)

// ResolutionError reports that no resolver produced an answer.
type ResolutionError struct {
	Name string
	Op   Op
	// AllErrored is true when every resolver failed with an error rather than
	// reporting ErrNotFound.
	AllErrored bool
	// Err aggregates the per-resolver errors.
	Err error
}

func (e *ResolutionError) Error() string {
	kind := "no resolver had an answer"
	if e.AllErrored {
		kind = "all resolvers errored"
	}
	if e.Err == nil {
		return fmt.Sprintf("resolve %s for %q: %s", e.Op, e.Name, kind)
	}
	return fmt.Sprintf("resolve %s for %q: %s: %v", e.Op, e.Name, kind, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool { return target == ErrResolutionFailed }

var profile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

// Normalize lower-cases and IDNA-maps a name for lookup, keeping Unicode labels
// in their mapped Unicode form rather than punycode.
func Normalize(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	ascii, err := profile.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	uni, err := profile.ToUnicode(ascii)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	for _, label := range strings.Split(uni, ".") {
		if label == "" {
			return "", fmt.Errorf("%w: empty label in %q", ErrInvalidName, name)
		}
	}
	return uni, nil
}

func nameOf(r Resolver, i int) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("resolver[%d]", i)
}
