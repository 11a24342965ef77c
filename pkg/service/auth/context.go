package auth

import "context"

type ctxKey int

const identityKey ctxKey = iota

// Identity is the verified caller attached to a request.
type Identity struct {
	ID    string
	Email string
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller, or false for guests.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
