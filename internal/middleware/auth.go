package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/banterhq/banter/internal/auth"
)

type userIDKey struct{}

// Auth returns a middleware that requires a valid Bearer access token on
// every request in the group and stashes the authenticated user ID in the
// request context. The WebSocket upgrade is the one authenticated route that
// bypasses this, since browsers cannot set headers on an upgrade request.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w, "unauthorized")
				return
			}

			claims, err := auth.ValidateAccessToken(token, jwtSecret)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID retrieves the authenticated user ID placed by Auth, or "" on a
// request that never passed through it.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey{}).(string)
	return v
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`)) //nolint:errcheck
}
