package auth

import "context"

type contextKey string

const identityKey contextKey = "identity"

// Identity is the narrow view of the authenticated user that the rest of the
// application is allowed to see. It is constructed exactly once, at the trust
// boundary, from already-verified token claims. Role assignment lives in the
// profile store, not the token.
type Identity struct {
	Subject     string
	DisplayName string
	Email       string
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the authenticated identity from context.
// The zero Identity (empty Subject) means the request is unauthenticated.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}
