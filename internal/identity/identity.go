// Package identity resolves the current user for a request. Authentication
// itself happens upstream; this package trusts the X-User-ID header set by
// the auth proxy and carries the id through the request context.
package identity

import (
	"context"
	"net/http"

	"github.com/dukerupert/embla/internal/domain"
)

type contextKey string

const userIDKey contextKey = "user_id"

// HeaderUserID is set by the upstream auth proxy for authenticated requests
// and absent for anonymous ones.
const HeaderUserID = "X-User-ID"

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, or false when the
// request is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

// ContextProvider reads the current user from the request context.
type ContextProvider struct{}

var _ domain.IdentityProvider = ContextProvider{}

func (ContextProvider) CurrentUserID(ctx context.Context) (string, bool) {
	return UserIDFromContext(ctx)
}

// Middleware copies the auth proxy's user header into the request context.
// Requests without the header pass through as anonymous.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := r.Header.Get(HeaderUserID); userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}
