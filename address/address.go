// Package address compares blockchain addresses in their canonical form for a
// given CAIP-2 chain namespace.
package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// ErrMalformed is returned when an address does not fit its namespace's format.
var ErrMalformed = errors.New("malformed address")

const (
	NamespaceEIP155 = "eip155"
	NamespaceSolana = "solana"
)

// Namespace returns the CAIP-2 namespace of chain ("eip155" for "eip155:1").
// An empty chain yields "".
func Namespace(chain string) string {
	ns, _, _ := strings.Cut(strings.TrimSpace(chain), ":")
	return strings.ToLower(ns)
}

// Canonical returns the form two addresses on the same chain are compared in.
// When chain is empty the namespace is inferred from the address shape.
func Canonical(chain, addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", ErrMalformed
	}

	ns := Namespace(chain)
	if ns == "" && isHexAddress(addr) {
		ns = NamespaceEIP155
	}

	switch ns {
	case NamespaceEIP155:
		if !isHexAddress(addr) {
			return "", ErrMalformed
		}
		return "0x" + strings.ToLower(addr[2:]), nil
	case NamespaceSolana:
		raw, err := base58.Decode(addr)
		if err != nil || len(raw) != 32 {
			return "", ErrMalformed
		}
		return base58.Encode(raw), nil
	default:
		return addr, nil
	}
}

// Equal reports whether a and b denote the same account on chain. Malformed
// addresses are never equal to anything.
func Equal(chain, a, b string) bool {
	ca, err := Canonical(chain, a)
	if err != nil {
		return false
	}
	cb, err := Canonical(chain, b)
	if err != nil {
		return false
	}
	return ca == cb
}

// Checksum renders a 0x-hex address in EIP-55 mixed case.
func Checksum(addr string) (string, error) {
	if !isHexAddress(addr) {
		return "", ErrMalformed
	}
	lower := strings.ToLower(addr[2:])

	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := make([]byte, 0, 42)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && c <= 'f' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out), nil
}

// ValidChecksum reports whether a mixed-case address carries a correct EIP-55
// checksum. All-lower and all-upper addresses carry no checksum and pass.
func ValidChecksum(addr string) bool {
	if !isHexAddress(addr) {
		return false
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	want, err := Checksum(addr)
	return err == nil && want[2:] == body
}

func isHexAddress(addr string) bool {
	if len(addr) != 42 || (addr[:2] != "0x" && addr[:2] != "0X") {
		return false
	}
	_, err := hex.DecodeString(addr[2:])
	return err == nil
}
