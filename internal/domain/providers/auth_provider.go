package providers

import (
	"context"
)

// AuthProvider verifies a bearer token and returns the caller's uid
type AuthProvider interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type uidContextKey struct{}

// WithUserID stores the authenticated uid on the context
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidContextKey{}, uid)
}

// CurrentUserID returns the authenticated uid, or "" and false if none
func CurrentUserID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidContextKey{}).(string)
	return uid, ok && uid != ""
}
