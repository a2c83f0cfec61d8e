// Package push sends Web Push notifications to users with no live
// connection. Subscriptions are stored as raw browser JSON per user and
// pruned when the push service reports them gone.
package push

import (
	"context"
	"encoding/json"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/bloghub/internal/logger"
	"github.com/bloghub/internal/storage"
)

const sendTimeout = 10 * time.Second

// Subscription mirrors the browser PushSubscription JSON shape.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Sender delivers Web Push messages through the stored subscriptions.
type Sender struct {
	subs  storage.PushSubscriptionStore
	vapid *webpush.Options
}

// NewSender returns a Sender, or nil when VAPID keys are not configured.
// A nil Sender disables the push fallback without disabling subscriptions.
func NewSender(subs storage.PushSubscriptionStore, publicKey, privateKey, subscriber string) *Sender {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	if subscriber == "" {
		subscriber = "bloghub-push"
	}
	return &Sender{
		subs: subs,
		vapid: &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             30,
		},
	}
}

// Notify sends title/body/data to every subscription of the user.
// Subscriptions that the push service reports as gone (404/410) are pruned.
// Errors are logged, never returned: push is a fallback channel and the
// durable record already exists.
func (s *Sender) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	list, err := s.subs.ListSubscriptions(ctx, userID)
	if err != nil {
		logger.Errorf("push list subscriptions user=%s: %v", userID, err)
		return
	}
	if len(list) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{"title": title, "body": body, "data": data})
	if err != nil {
		logger.Errorf("push payload encode: %v", err)
		return
	}

	var kept []string
	pruned := false
	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == "" {
			pruned = true
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("push send user=%s: %v", userID, err)
			kept = append(kept, item)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 404 || resp.StatusCode == 410 {
			pruned = true
			continue
		}
		kept = append(kept, item)
	}

	if pruned {
		if err := s.subs.ReplaceSubscriptions(ctx, userID, kept); err != nil {
			logger.Errorf("push prune subscriptions user=%s: %v", userID, err)
		}
	}
}

// ValidSubscription reports whether raw is a usable browser subscription.
func ValidSubscription(raw []byte) bool {
	var sub Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return false
	}
	return sub.Endpoint != "" && sub.Keys.P256dh != "" && sub.Keys.Auth != ""
}
