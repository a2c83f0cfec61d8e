package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloghub/internal/logger"
	"github.com/bloghub/internal/model"
)

// MessageRepository is the conversation store: direct messages plus the
// derived conversation list and unread counts.
type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.IsRead, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

// GetBetween returns the chronological transcript between two users, oldest
// first. Ties on created_at fall back to id so the order is deterministic.
func (r *MessageRepository) GetBetween(ctx context.Context, userA, userB string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.GetBetween", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, text, is_read, created_at
		 FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY created_at ASC, id ASC`, userA, userB,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetBetween query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 32)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.GetBetween scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.GetBetween rows: %w", err)
	}
	return messages, nil
}

// GetConversations groups all messages touching userID by the other
// participant, keeping only the latest message per peer, newest conversation
// first. Peers whose account no longer exists are filtered by the users join.
// The grouping runs in the database (DISTINCT ON), not in Go.
func (r *MessageRepository) GetConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("msg.GetConversations", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.name, u.avatar_url,
		        m.id, m.sender_id, m.receiver_id, m.text, m.is_read, m.created_at
		 FROM (
		     SELECT DISTINCT ON (peer_id) peer_id, id AS message_id
		     FROM (
		         SELECT id, created_at,
		                CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS peer_id
		         FROM messages
		         WHERE sender_id = $1 OR receiver_id = $1
		     ) all_msgs
		     ORDER BY peer_id, created_at DESC, id DESC
		 ) latest
		 JOIN messages m ON m.id = latest.message_id
		 JOIN users u ON u.id = latest.peer_id
		 ORDER BY m.created_at DESC, m.id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetConversations query: %w", err)
	}
	defer rows.Close()

	convs := make([]model.Conversation, 0, 16)
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.User.ID, &c.User.Username, &c.User.Name, &c.User.AvatarURL,
			&c.LastMessage.ID, &c.LastMessage.SenderID, &c.LastMessage.ReceiverID,
			&c.LastMessage.Text, &c.LastMessage.IsRead, &c.LastMessage.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.GetConversations scan: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.GetConversations rows: %w", err)
	}
	return convs, nil
}

// MarkRead flips is_read for all unread messages from senderID to receiverID
// and returns the number of rows updated. Idempotent: a second call updates
// zero rows.
func (r *MessageRepository) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	defer logger.DeferLogDuration("msg.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET is_read = true
		 WHERE receiver_id = $1 AND sender_id = $2 AND is_read = false`,
		receiverID, senderID,
	)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetUnreadCount counts unread messages addressed to userID. Always derived
// from the is_read flags, never kept as a separate counter.
func (r *MessageRepository) GetUnreadCount(ctx context.Context, userID string) (int, error) {
	defer logger.DeferLogDuration("msg.GetUnreadCount", time.Now())()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.GetUnreadCount: %w", err)
	}
	return count, nil
}
