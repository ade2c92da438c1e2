package access

import "context"

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached to ctx, or nil for anonymous callers.
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok {
		return nil
	}
	return &id
}
