package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloghub/internal/logger"
	"github.com/bloghub/internal/model"
)

// NotificationRepository is the notification store: fan-out events with read
// state. All notification-producing actions must create records through it so
// self-notification suppression and unread counts stay correct.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create persists a notification and returns it. When recipientID equals
// senderID nothing is persisted and (nil, nil) is returned: users are never
// notified about their own actions.
func (r *NotificationRepository) Create(ctx context.Context, recipientID, senderID string, typ model.NotificationType, postID *string, text string) (*model.Notification, error) {
	defer logger.DeferLogDuration("notif.Create", time.Now())()
	if recipientID == senderID {
		return nil, nil
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("notifRepo.Create: unknown type %q", typ)
	}
	n := &model.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		PostID:      postID,
		Text:        text,
		Read:        false,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, recipient_id, sender_id, type, post_id, text, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.RecipientID, n.SenderID, n.Type, n.PostID, n.Text, n.Read, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("notifRepo.Create: %w", err)
	}
	return n, nil
}

// ExistsUnread reports whether an unread notification with the same
// recipient, sender, type and post already exists. Used to avoid duplicate
// like notifications on unlike/re-like.
func (r *NotificationRepository) ExistsUnread(ctx context.Context, recipientID, senderID string, typ model.NotificationType, postID string) (bool, error) {
	defer logger.DeferLogDuration("notif.ExistsUnread", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
		     SELECT 1 FROM notifications
		     WHERE recipient_id = $1 AND sender_id = $2 AND type = $3 AND post_id = $4 AND read = false
		 )`,
		recipientID, senderID, typ, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("notifRepo.ExistsUnread: %w", err)
	}
	return exists, nil
}

// GetByRecipient returns the recipient's notifications, newest first, each
// with a denormalized sender summary and, where a post is referenced, its
// title. Notifications whose sender account was deleted are filtered by the
// users join.
func (r *NotificationRepository) GetByRecipient(ctx context.Context, recipientID string) ([]model.Notification, error) {
	defer logger.DeferLogDuration("notif.GetByRecipient", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT n.id, n.recipient_id, n.sender_id, n.type, n.post_id, n.text, n.read, n.created_at,
		        u.id, u.username, u.name, u.avatar_url,
		        COALESCE(p.title, '')
		 FROM notifications n
		 JOIN users u ON u.id = n.sender_id
		 LEFT JOIN posts p ON p.id = n.post_id
		 WHERE n.recipient_id = $1
		 ORDER BY n.created_at DESC, n.id DESC`, recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("notifRepo.GetByRecipient query: %w", err)
	}
	defer rows.Close()

	notifs := make([]model.Notification, 0, 16)
	for rows.Next() {
		var n model.Notification
		sender := &model.UserSummary{}
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.Type, &n.PostID, &n.Text, &n.Read, &n.CreatedAt,
			&sender.ID, &sender.Username, &sender.Name, &sender.AvatarURL,
			&n.PostTitle); err != nil {
			return nil, fmt.Errorf("notifRepo.GetByRecipient scan: %w", err)
		}
		n.Sender = sender
		notifs = append(notifs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifRepo.GetByRecipient rows: %w", err)
	}
	return notifs, nil
}

// MarkAllRead flips every unread notification of the recipient to read and
// returns the number of rows updated. Idempotent.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	defer logger.DeferLogDuration("notif.MarkAllRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE recipient_id = $1 AND read = false`,
		recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("notifRepo.MarkAllRead: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int, error) {
	defer logger.DeferLogDuration("notif.GetUnreadCount", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = false`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("notifRepo.GetUnreadCount: %w", err)
	}
	return count, nil
}
