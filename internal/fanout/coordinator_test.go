package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloghub/internal/model"
	"github.com/bloghub/internal/ws"
)

type fakeMessageStore struct {
	created []*model.Message
	err     error
}

func (f *fakeMessageStore) Create(ctx context.Context, m *model.Message) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, m)
	return nil
}

type fakeNotificationStore struct {
	created      []*model.Notification
	err          error
	unreadExists bool
	existsCalls  int
}

func (f *fakeNotificationStore) Create(ctx context.Context, recipientID, senderID string, typ model.NotificationType, postID *string, text string) (*model.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	if recipientID == senderID {
		return nil, nil
	}
	n := &model.Notification{
		ID:          "n1",
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		PostID:      postID,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
	}
	f.created = append(f.created, n)
	return n, nil
}

func (f *fakeNotificationStore) ExistsUnread(ctx context.Context, recipientID, senderID string, typ model.NotificationType, postID string) (bool, error) {
	f.existsCalls++
	return f.unreadExists, nil
}

type fakeEmitter struct {
	events    []ws.OutgoingEvent
	users     []string
	delivered int
}

func (f *fakeEmitter) EmitToUser(userID string, ev ws.OutgoingEvent) int {
	f.users = append(f.users, userID)
	f.events = append(f.events, ev)
	return f.delivered
}

type fakePush struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (f *fakePush) Notify(ctx context.Context, userID, title, body string, data map[string]string) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	close(f.done)
}

func TestSendMessage_PersistsThenEmits(t *testing.T) {
	req := require.New(t)
	msgs := &fakeMessageStore{}
	emitter := &fakeEmitter{delivered: 1}
	c := NewCoordinator(msgs, &fakeNotificationStore{}, emitter, nil)

	m, err := c.SendMessage(context.Background(), "alice", "bob", "  hello  ")
	req.NoError(err)
	req.NotEmpty(m.ID)
	req.Equal("hello", m.Text)
	req.False(m.IsRead)

	req.Len(msgs.created, 1)
	req.Equal([]string{"bob"}, emitter.users)
	req.Equal(ws.EventNewMessage, emitter.events[0].Type)
}

func TestSendMessage_EmptyTextRejectedBeforePersist(t *testing.T) {
	req := require.New(t)
	msgs := &fakeMessageStore{}
	emitter := &fakeEmitter{}
	c := NewCoordinator(msgs, &fakeNotificationStore{}, emitter, nil)

	_, err := c.SendMessage(context.Background(), "alice", "bob", "   ")
	req.ErrorIs(err, ErrEmptyText)
	req.Empty(msgs.created)
	req.Empty(emitter.events)
}

func TestSendMessage_NoEmitOnPersistFailure(t *testing.T) {
	req := require.New(t)
	msgs := &fakeMessageStore{err: errors.New("db down")}
	emitter := &fakeEmitter{}
	c := NewCoordinator(msgs, &fakeNotificationStore{}, emitter, nil)

	_, err := c.SendMessage(context.Background(), "alice", "bob", "hi")
	req.Error(err)
	req.Empty(emitter.events)
}

func TestSendMessage_PushFallbackWhenRoomEmpty(t *testing.T) {
	req := require.New(t)
	pushed := &fakePush{done: make(chan struct{})}
	c := NewCoordinator(&fakeMessageStore{}, &fakeNotificationStore{}, &fakeEmitter{delivered: 0}, pushed)

	_, err := c.SendMessage(context.Background(), "alice", "bob", "hi")
	req.NoError(err)

	select {
	case <-pushed.done:
	case <-time.After(time.Second):
		t.Fatal("push fallback not invoked")
	}
}

func TestSendMessage_NoPushWhenDelivered(t *testing.T) {
	req := require.New(t)
	pushed := &fakePush{done: make(chan struct{})}
	c := NewCoordinator(&fakeMessageStore{}, &fakeNotificationStore{}, &fakeEmitter{delivered: 2}, pushed)

	_, err := c.SendMessage(context.Background(), "alice", "bob", "hi")
	req.NoError(err)

	select {
	case <-pushed.done:
		t.Fatal("push fallback invoked despite live delivery")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifyLike_EmitsToRecipient(t *testing.T) {
	req := require.New(t)
	notifs := &fakeNotificationStore{}
	emitter := &fakeEmitter{delivered: 1}
	c := NewCoordinator(&fakeMessageStore{}, notifs, emitter, nil)

	n, err := c.NotifyLike(context.Background(), "author", "liker", "post-1")
	req.NoError(err)
	req.NotNil(n)
	req.Equal(model.NotificationLike, n.Type)
	req.Equal("post-1", *n.PostID)

	req.Equal([]string{"author"}, emitter.users)
	req.Equal(ws.EventNewNotification, emitter.events[0].Type)
}

func TestNotifyLike_SelfLikeSuppressed(t *testing.T) {
	req := require.New(t)
	notifs := &fakeNotificationStore{}
	emitter := &fakeEmitter{}
	c := NewCoordinator(&fakeMessageStore{}, notifs, emitter, nil)

	n, err := c.NotifyLike(context.Background(), "author", "author", "post-1")
	req.NoError(err)
	req.Nil(n)
	req.Empty(notifs.created)
	req.Empty(emitter.events)
	req.Zero(notifs.existsCalls)
}

func TestNotifyLike_UnreadDuplicateSkipped(t *testing.T) {
	req := require.New(t)
	notifs := &fakeNotificationStore{unreadExists: true}
	emitter := &fakeEmitter{}
	c := NewCoordinator(&fakeMessageStore{}, notifs, emitter, nil)

	n, err := c.NotifyLike(context.Background(), "author", "liker", "post-1")
	req.NoError(err)
	req.Nil(n)
	req.Empty(notifs.created)
	req.Empty(emitter.events)
	req.Equal(1, notifs.existsCalls)
}

func TestNotifyComment_CarriesText(t *testing.T) {
	req := require.New(t)
	notifs := &fakeNotificationStore{}
	c := NewCoordinator(&fakeMessageStore{}, notifs, &fakeEmitter{delivered: 1}, nil)

	n, err := c.NotifyComment(context.Background(), "author", "commenter", "post-1", "nice post")
	req.NoError(err)
	req.Equal(model.NotificationComment, n.Type)
	req.Equal("nice post", n.Text)
}

func TestNotifyFollow_NoPost(t *testing.T) {
	req := require.New(t)
	notifs := &fakeNotificationStore{}
	c := NewCoordinator(&fakeMessageStore{}, notifs, &fakeEmitter{delivered: 1}, nil)

	n, err := c.NotifyFollow(context.Background(), "followee", "follower")
	req.NoError(err)
	req.Equal(model.NotificationFollow, n.Type)
	req.Nil(n.PostID)
}

func TestNotify_SelfSuppressedByStore(t *testing.T) {
	req := require.New(t)
	notifs := &fakeNotificationStore{}
	emitter := &fakeEmitter{}
	c := NewCoordinator(&fakeMessageStore{}, notifs, emitter, nil)

	n, err := c.NotifyFollow(context.Background(), "alice", "alice")
	req.NoError(err)
	req.Nil(n)
	req.Empty(emitter.events)
}
