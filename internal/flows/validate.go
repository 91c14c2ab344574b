package flows

import "github.com/MrEthical07/goNameAuth/address"

// SessionMatch is the SessionValidator verdict.
type SessionMatch uint8

const (
	SessionMatchOK SessionMatch = iota
	SessionMismatch
)

func (m SessionMatch) String() string {
	if m == SessionMatchOK {
		return "match"
	}
	return "mismatch"
}

// ValidateSession compares the address a name resolved to with the address a
// session (or document) reports, in the canonical form for chain.
func ValidateSession(chain, resolved, reported string) SessionMatch {
	if address.Equal(chain, resolved, reported) {
		return SessionMatchOK
	}
	return SessionMismatch
}
