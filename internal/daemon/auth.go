package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w)
				return
			}
			supplied := strings.TrimPrefix(auth, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
