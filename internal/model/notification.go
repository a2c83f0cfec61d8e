package model

import "time"

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow:
		return true
	}
	return false
}

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	SenderID    string           `json:"sender_id"`
	Type        NotificationType `json:"type"`
	PostID      *string          `json:"post_id,omitempty"`
	Text        string           `json:"text,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`

	// Read-only projections for presentation.
	Sender    *UserSummary `json:"sender,omitempty"`
	PostTitle string       `json:"post_title,omitempty"`
}
