// Package random wraps crypto/rand for short opaque tokens.
package random

import (
	"crypto/rand"
	"encoding/base64"
)

// Token returns n random bytes encoded as unpadded base64url.
func Token(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
