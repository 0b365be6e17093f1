package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken returns a URL-safe hex string used for opaque session tokens.
func NewToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
