package tool

import "context"

type ctxUserIDKey struct{}

// WithUserID binds the caller's identity to ctx. Tools read the user from
// here and never from model arguments.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey{}, userID)
}

// UserID returns the identity bound by WithUserID, or empty string
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserIDKey{}).(string); ok {
		return v
	}
	return ""
}
