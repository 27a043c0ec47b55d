// Package csrf implements double-submit CSRF protection for cookie-carried
// refresh tokens: the client receives one random value as a readable cookie
// and must echo it back in a request header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

const tokenBytes = 32 // 256 bits

// Pair carries the two halves of a double-submit token. Both fields hold
// the same freshly generated value; the cookie must be readable by client
// script so it can be echoed as a header.
type Pair struct {
	CookieValue string
	HeaderValue string
}

// Issue generates a new pair from 256 bits of entropy.
func Issue() (Pair, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Pair{}, err
	}

	value := base64.RawURLEncoding.EncodeToString(raw)
	return Pair{CookieValue: value, HeaderValue: value}, nil
}

// Validate reports whether the header and cookie values are both present
// and byte-equal. The comparison is constant-time.
func Validate(header, cookie string) bool {
	if header == "" || cookie == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) == 1
}
