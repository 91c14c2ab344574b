package authdoc

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TextRecordKey is the text record a naming system stores the authenticator under.
const TextRecordKey = "authenticator"

// Placeholder is substituted with the full queried name in URL templates.
const Placeholder = "{}"

// ErrInvalidSource is returned for text-record values that are neither a URL
// template nor an inline JSON document.
var ErrInvalidSource = errors.New("invalid authenticator source")

// SourceKind discriminates how an authenticator is published.
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceURL
	SourceInline
)

func (k SourceKind) String() string {
	switch k {
	case SourceURL:
		return "url"
	case SourceInline:
		return "inline"
	default:
		return "none"
	}
}

// Source is where the authenticator document lives: behind a URL template, or
// embedded in the record itself.
type Source struct {
	Kind     SourceKind
	Template string
	Inline   []byte
}

// IsZero reports whether no source was published.
func (s Source) IsZero() bool {
	return s.Kind == SourceNone
}

// URLSource builds a URL template source without validation.
func URLSource(template string) Source {
	return Source{Kind: SourceURL, Template: template}
}

// InlineSource builds an inline source from a JSON document.
func InlineSource(doc []byte) Source {
	out := make([]byte, len(doc))
	copy(out, doc)
	return Source{Kind: SourceInline, Inline: out}
}

// ParseSource classifies a raw text-record value. Values starting with '{' are
// inline documents and are validated later by Parse; anything else must be an
// http(s) URL containing exactly one placeholder.
func ParseSource(record string) (Source, error) {
	record = strings.TrimSpace(record)
	if record == "" {
		return Source{}, fmt.Errorf("%w: empty record", ErrInvalidSource)
	}
	if strings.HasPrefix(record, "{") {
		return InlineSource([]byte(record)), nil
	}

	if n := strings.Count(record, Placeholder); n != 1 {
		return Source{}, fmt.Errorf("%w: url template must contain exactly one %s, found %d", ErrInvalidSource, Placeholder, n)
	}
	probe, err := url.Parse(strings.Replace(record, Placeholder, "name", 1))
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if probe.Scheme != "https" && probe.Scheme != "http" {
		return Source{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, probe.Scheme)
	}
	if probe.Host == "" {
		return Source{}, fmt.Errorf("%w: missing host", ErrInvalidSource)
	}

	return URLSource(record), nil
}

// Expand substitutes name into the template verbatim.
func (s Source) Expand(name string) (string, error) {
	if s.Kind != SourceURL {
		return "", fmt.Errorf("%w: source is %s, not url", ErrInvalidSource, s.Kind)
	}
	if strings.Count(s.Template, Placeholder) != 1 {
		return "", fmt.Errorf("%w: url template must contain exactly one %s", ErrInvalidSource, Placeholder)
	}
	return strings.Replace(s.Template, Placeholder, name, 1), nil
}

func (s Source) String() string {
	switch s.Kind {
	case SourceURL:
		return s.Template
	case SourceInline:
		return "inline(" + fmt.Sprint(len(s.Inline)) + " bytes)"
	default:
		return "none"
	}
}
