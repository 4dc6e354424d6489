// Package authmw provides HTTP middleware for bearer token authentication:
// signed user session tokens for the API and a static token for admin routes.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// bearer extracts the token from an Authorization header.
func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", false
	}
	return auth[len(bearerPrefix):], true
}

// BearerToken returns middleware that validates the Authorization header
// contains a Bearer token matching the expected value. Comparison uses
// constant-time equality. An empty expected token rejects every request.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearer(r)
			if !ok {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
