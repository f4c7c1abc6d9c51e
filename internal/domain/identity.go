package domain

import "context"

// IdentityProvider supplies the authenticated user id for the current
// request, or false when the caller is anonymous. Authentication mechanics
// (sessions, tokens) live upstream; the cart engine only consumes the
// resolved identity.
type IdentityProvider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}
