package common

import "context"

type identityKey struct{}

// Identity is the caller recovered from a bearer token.
type Identity struct {
	Subject  string
	Username string
}

// WithIdentity stores the authenticated caller on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.Subject != ""
}

// UserID returns the subject of the authenticated caller.
func UserID(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.Subject, ok
}
