package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyDigest returns a fixed-length hex digest of v for use inside Redis keys.
func KeyDigest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:16])
}
