package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID holds the authenticated user's ID (string).
	CtxKeyUserID ctxKey = "user_id"
)

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok
}

// ContextWithUserID binds a user ID to the request context. Identity is
// always request-scoped; concurrent requests never observe each other.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, userID)
}
