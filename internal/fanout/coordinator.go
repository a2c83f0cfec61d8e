// Package fanout glues the write side to the live channel: every state
// change is persisted first, then pushed to the affected user's room on a
// best-effort basis.
package fanout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloghub/internal/model"
	"github.com/bloghub/internal/ws"
)

// ErrEmptyText rejects a message or comment with no content before any
// persistence attempt.
var ErrEmptyText = errors.New("text required")

// ConversationStore persists direct messages.
type ConversationStore interface {
	Create(ctx context.Context, m *model.Message) error
}

// NotificationStore persists fan-out events. Create must suppress
// self-notification (recipient == sender) by returning (nil, nil).
type NotificationStore interface {
	Create(ctx context.Context, recipientID, senderID string, typ model.NotificationType, postID *string, text string) (*model.Notification, error)
	ExistsUnread(ctx context.Context, recipientID, senderID string, typ model.NotificationType, postID string) (bool, error)
}

// Emitter delivers an event into a user's room, returning the number of live
// connections it reached. Zero is not an error.
type Emitter interface {
	EmitToUser(userID string, ev ws.OutgoingEvent) int
}

// PushNotifier sends Web Push notifications. Nil disables push.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// Coordinator is the single choke point between write-side operations and the
// live channel. All dependencies are injected at construction; it never
// reaches for ambient global state.
type Coordinator struct {
	messages      ConversationStore
	notifications NotificationStore
	emitter       Emitter
	push          PushNotifier
}

func NewCoordinator(messages ConversationStore, notifications NotificationStore, emitter Emitter, push PushNotifier) *Coordinator {
	return &Coordinator{
		messages:      messages,
		notifications: notifications,
		emitter:       emitter,
		push:          push,
	}
}

// SendMessage persists a direct message and then pushes new_message to the
// receiver's room. If persistence fails no event is emitted and the error
// propagates; a failed or dropped emit never fails the send, because the
// persisted record is authoritative.
func (c *Coordinator) SendMessage(ctx context.Context, senderID, receiverID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	m := &model.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		IsRead:     false,
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	c.deliver(receiverID, ws.OutgoingEvent{Type: ws.EventNewMessage, Payload: m},
		"New message", m.Text, map[string]string{"sender_id": senderID})
	return m, nil
}

// NotifyLike records a like notification for the post author. Re-liking a
// post while an identical unread like notification exists is a no-op, so an
// unlike/re-like cycle does not duplicate notifications.
func (c *Coordinator) NotifyLike(ctx context.Context, recipientID, senderID, postID string) (*model.Notification, error) {
	if recipientID == senderID {
		return nil, nil
	}
	exists, err := c.notifications.ExistsUnread(ctx, recipientID, senderID, model.NotificationLike, postID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	return c.createAndEmit(ctx, recipientID, senderID, model.NotificationLike, &postID, "")
}

// NotifyComment records a comment notification for the post author, carrying
// the comment text.
func (c *Coordinator) NotifyComment(ctx context.Context, recipientID, senderID, postID, text string) (*model.Notification, error) {
	return c.createAndEmit(ctx, recipientID, senderID, model.NotificationComment, &postID, text)
}

// NotifyFollow records a follow notification for the followed user.
func (c *Coordinator) NotifyFollow(ctx context.Context, recipientID, senderID string) (*model.Notification, error) {
	return c.createAndEmit(ctx, recipientID, senderID, model.NotificationFollow, nil, "")
}

func (c *Coordinator) createAndEmit(ctx context.Context, recipientID, senderID string, typ model.NotificationType, postID *string, text string) (*model.Notification, error) {
	n, err := c.notifications.Create(ctx, recipientID, senderID, typ, postID, text)
	if err != nil {
		return nil, err
	}
	if n == nil {
		// Self-notification suppressed by the store.
		return nil, nil
	}
	data := map[string]string{"type": string(typ)}
	if postID != nil {
		data["post_id"] = *postID
	}
	c.deliver(recipientID, ws.OutgoingEvent{Type: ws.EventNewNotification, Payload: n},
		"New activity", string(typ), data)
	return n, nil
}

// deliver emits into the room; when nobody is connected it falls back to Web
// Push if configured. Delivery failures are invisible to the caller: clients
// reconcile missed events from the unread-count and list endpoints.
func (c *Coordinator) deliver(userID string, ev ws.OutgoingEvent, pushTitle, pushBody string, pushData map[string]string) {
	delivered := c.emitter.EmitToUser(userID, ev)
	if delivered == 0 && c.push != nil {
		go c.push.Notify(context.Background(), userID, pushTitle, pushBody, pushData)
	}
}
