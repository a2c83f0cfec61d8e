package model

import "time"

// Message is a direct message between two users. Immutable once created
// except for the IsRead transition false -> true, which only the receiver's
// read operation performs.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversation pairs a peer with the most recent message exchanged with them.
// It is derived from the messages table, never stored.
type Conversation struct {
	User        UserSummary `json:"user"`
	LastMessage Message     `json:"last_message"`
}
