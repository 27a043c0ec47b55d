// Package middleware provides net/http wrappers around the engine's token
// verification.
package middleware

import (
	"context"
	"net/http"
	"strings"

	authkit "github.com/sorguskor/authkit"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity the guard attached to the
// request context.
func IdentityFromContext(ctx context.Context) (authkit.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(authkit.Identity)
	return id, ok
}

// Guard rejects requests lacking a valid bearer access token and attaches
// the verified identity to the request context.
func Guard(engine *authkit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
