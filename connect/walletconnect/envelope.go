package walletconnect

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/MrEthical07/goNameAuth/internal"
	"golang.org/x/crypto/chacha20poly1305"
)

const envelopeType0 = 0

var errEnvelope = errors.New("walletconnect: malformed envelope")

// seal encrypts plaintext into a type-0 envelope: base64(type | iv | sealed).
func seal(key internal.SymKey, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", err
	}
	out := make([]byte, 1+chacha20poly1305.NonceSize, 1+chacha20poly1305.NonceSize+len(plaintext)+aead.Overhead())
	out[0] = envelopeType0
	if _, err := rand.Read(out[1:]); err != nil {
		return "", err
	}
	out = aead.Seal(out, out[1:1+chacha20poly1305.NonceSize], plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func open(key internal.SymKey, message string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, errEnvelope
	}
	if len(raw) < 1+chacha20poly1305.NonceSize || raw[0] != envelopeType0 {
		return nil, errEnvelope
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := raw[1 : 1+chacha20poly1305.NonceSize]
	return aead.Open(nil, nonce, raw[1+chacha20poly1305.NonceSize:], nil)
}
