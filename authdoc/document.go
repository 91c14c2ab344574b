package authdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidDocument wraps every schema violation found while parsing.
	ErrInvalidDocument = errors.New("invalid authenticator document")
	// ErrNoFlows is returned for documents whose authFlows array is empty.
	ErrNoFlows = errors.New("authenticator document has no auth flows")
)

// CAIP-2 chain identifier: namespace ":" reference.
var chainIDPattern = regexp.MustCompile(`^[-a-z0-9]{3,8}:[-_a-zA-Z0-9]{1,32}$`)

// FlowSpec is one candidate authentication mechanism.
type FlowSpec struct {
	Platform   Platform   `json:"platform,omitempty"`
	Connection Connection `json:"connection"`
	URI        string     `json:"uri,omitempty"`
}

func (f FlowSpec) String() string {
	var b strings.Builder
	if f.Platform != "" {
		b.WriteString(string(f.Platform))
		b.WriteByte('/')
	}
	b.WriteString(string(f.Connection))
	if f.URI != "" {
		b.WriteByte('(')
		b.WriteString(f.URI)
		b.WriteByte(')')
	}
	return b.String()
}

// Document is a parsed authenticator document. AuthFlows keeps document order,
// which is the order flows are attempted in.
type Document struct {
	Address   string     `json:"address,omitempty"`
	Chain     string     `json:"chain,omitempty"`
	AuthFlows []FlowSpec `json:"authFlows"`
}

// HasAddress reports whether the document pins an address.
func (d *Document) HasAddress() bool {
	return d != nil && strings.TrimSpace(d.Address) != ""
}

type wireFlow struct {
	Platform   *string `json:"platform"`
	Connection *string `json:"connection"`
	URI        *string `json:"uri"`
}

type wireDocument struct {
	Address   *string            `json:"address"`
	Chain     *string            `json:"chain"`
	AuthFlows *[]json.RawMessage `json:"authFlows"`
}

// Parse decodes and validates a JSON authenticator document. Unknown top-level
// and per-flow fields are ignored.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidDocument)
	}

	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := &Document{}
	if wire.Address != nil {
		doc.Address = strings.TrimSpace(*wire.Address)
	}
	if wire.Chain != nil {
		chain := strings.TrimSpace(*wire.Chain)
		if !chainIDPattern.MatchString(chain) {
			return nil, fmt.Errorf("%w: chain %q is not a CAIP-2 identifier", ErrInvalidDocument, chain)
		}
		doc.Chain = chain
	}

	if wire.AuthFlows == nil {
		return nil, fmt.Errorf("%w: authFlows is required", ErrInvalidDocument)
	}
	if len(*wire.AuthFlows) == 0 {
		return nil, ErrNoFlows
	}

	doc.AuthFlows = make([]FlowSpec, 0, len(*wire.AuthFlows))
	for i, raw := range *wire.AuthFlows {
		flow, err := parseFlow(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: authFlows[%d]: %v", ErrInvalidDocument, i, err)
		}
		doc.AuthFlows = append(doc.AuthFlows, flow)
	}

	return doc, nil
}

func parseFlow(raw json.RawMessage) (FlowSpec, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return FlowSpec{}, errors.New("entry must be an object")
	}

	var wire wireFlow
	if err := json.Unmarshal(raw, &wire); err != nil {
		return FlowSpec{}, err
	}
	if wire.Connection == nil || strings.TrimSpace(*wire.Connection) == "" {
		return FlowSpec{}, errors.New("connection is required")
	}

	flow := FlowSpec{Connection: Connection(strings.TrimSpace(*wire.Connection))}
	if wire.Platform != nil {
		flow.Platform = Platform(strings.TrimSpace(*wire.Platform))
	}
	if wire.URI != nil {
		flow.URI = strings.TrimSpace(*wire.URI)
	}
	return flow, nil
}
