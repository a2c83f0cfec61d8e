package middleware

import "context"

type contextKey string

const UserIDKey contextKey = "user_id"

// GetUserID returns the authenticated user id from the request context
// (set by SessionAuth).
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// WithUserID returns a context carrying the user id. Exposed for tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

const sessionTokenKey contextKey = "session_token"

// GetSessionToken returns the raw session token the request authenticated
// with (set by SessionAuth). Used by logout to revoke the session.
func GetSessionToken(ctx context.Context) string {
	v, _ := ctx.Value(sessionTokenKey).(string)
	return v
}

func withSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey, token)
}
