package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// NewShareToken returns the public slug of a wishlist: 32 random bytes,
// URL-safe base64 without padding (43 characters).
func NewShareToken() (string, error) {
	return randomToken(32)
}

// randomToken encodes n bytes from crypto/rand as unpadded URL-safe base64.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
