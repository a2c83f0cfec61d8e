package storage

import "context"

// SessionStore resolves bearer session tokens to user ids. Sessions are
// issued by the external auth service; this API only validates and revokes.
// Implementations: redis.Client, memory.Client (for -dev and tests).
type SessionStore interface {
	SetSession(ctx context.Context, token, userID string) error
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
	Close() error
}

// PushSubscriptionStore keeps raw Web Push subscriptions (JSON) per user.
type PushSubscriptionStore interface {
	AddSubscription(ctx context.Context, userID, raw string) error
	ListSubscriptions(ctx context.Context, userID string) ([]string, error)
	ReplaceSubscriptions(ctx context.Context, userID string, raw []string) error
}
