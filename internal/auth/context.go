package auth

import "context"

type contextKey struct{ name string }

var (
	userIDKey = contextKey{"user_id"}
	roleKey   = contextKey{"role"}
)

// WithIdentity returns a context carrying the authenticated user and role.
func WithIdentity(ctx context.Context, userID string, role Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

// GetUserID returns the user id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetRole returns the role from context and true if set; otherwise "", false.
func GetRole(ctx context.Context) (Role, bool) {
	v, ok := ctx.Value(roleKey).(Role)
	return v, ok
}
