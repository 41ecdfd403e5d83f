package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type identityKey struct{}

// IdentityMiddleware reads the acting username from header and stores it
// in the request context. A missing header leaves the request anonymous.
func IdentityMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := strings.TrimSpace(r.Header.Get(header)); user != "" {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns ctx carrying username as the acting user.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, identityKey{}, username)
}

// UserFromContext returns the acting user, or "" for anonymous requests.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(identityKey{}).(string)
	return user
}

// requireUser rejects anonymous requests with 401 before next runs.
func requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == "" {
			failure(w, http.StatusUnauthorized, "You must be logged in.", nil)
			return
		}
		next(w, r)
	}
}
