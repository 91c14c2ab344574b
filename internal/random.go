package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	symKeySize = 32
	nonceSize  = 16
)

// SymKey is a pairing symmetric key.
type SymKey [symKeySize]byte

// NewSymKey returns a fresh random key.
func NewSymKey() (SymKey, error) {
	var k SymKey
	_, err := rand.Read(k[:])
	return k, err
}

func (k SymKey) String() string {
	return hex.EncodeToString(k[:])
}

// Topic derives the relay topic for k: hex(sha256(k)).
func (k SymKey) Topic() string {
	sum := sha256.Sum256(k[:])
	return hex.EncodeToString(sum[:])
}

// ParseSymKey decodes the hex form produced by String.
func ParseSymKey(s string) (SymKey, error) {
	var k SymKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	if len(raw) != symKeySize {
		return k, errors.New("invalid sym key size")
	}
	copy(k[:], raw)
	return k, nil
}

// NewNonce returns a base64url (unpadded) random nonce.
func NewNonce() (string, error) {
	var raw [nonceSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
