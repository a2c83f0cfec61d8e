package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionTTL      = 30 * 24 * time.Hour
	subscriptionTTL = 30 * 24 * time.Hour
	maxSubsPerUser  = 10
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) SetSession(ctx context.Context, token, userID string) error {
	return c.cli.Set(ctx, "session:"+token, userID, sessionTTL).Err()
}

// GetSession returns the user id for a token, or "" when the session is
// unknown or expired.
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, "session:"+token).Err()
}

// AddSubscription appends a raw push subscription, keeping at most
// maxSubsPerUser most recent entries.
func (c *Client) AddSubscription(ctx context.Context, userID, raw string) error {
	key := "push:subs:" + userID
	pipe := c.cli.Pipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -maxSubsPerUser, -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Client) ListSubscriptions(ctx context.Context, userID string) ([]string, error) {
	return c.cli.LRange(ctx, "push:subs:"+userID, 0, -1).Result()
}

func (c *Client) ReplaceSubscriptions(ctx context.Context, userID string, raw []string) error {
	key := "push:subs:" + userID
	pipe := c.cli.Pipeline()
	pipe.Del(ctx, key)
	if len(raw) > 0 {
		vals := make([]any, len(raw))
		for i, v := range raw {
			vals[i] = v
		}
		pipe.RPush(ctx, key, vals...)
		pipe.Expire(ctx, key, subscriptionTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}
