package memory

import (
	"context"
	"sync"
	"time"
)

const (
	sessionTTL     = 30 * 24 * time.Hour
	maxSubsPerUser = 10
)

type item struct {
	val string
	exp time.Time
}

// Client is the in-memory storage backend used in -dev mode and in tests.
type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
	subs     map[string][]string
}

func New() *Client {
	return &Client{
		sessions: make(map[string]item),
		subs:     make(map[string][]string),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(ctx context.Context, token, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = item{val: userID, exp: time.Now().Add(sessionTTL)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[token]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}

func (c *Client) AddSubscription(ctx context.Context, userID, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := append(c.subs[userID], raw)
	if len(subs) > maxSubsPerUser {
		subs = subs[len(subs)-maxSubsPerUser:]
	}
	c.subs[userID] = subs
	return nil
}

func (c *Client) ListSubscriptions(ctx context.Context, userID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subs := c.subs[userID]
	out := make([]string, len(subs))
	copy(out, subs)
	return out, nil
}

func (c *Client) ReplaceSubscriptions(ctx context.Context, userID string, raw []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(raw) == 0 {
		delete(c.subs, userID)
		return nil
	}
	subs := make([]string, len(raw))
	copy(subs, raw)
	c.subs[userID] = subs
	return nil
}
