package ws

// EventType names the events crossing the live channel.
type EventType string

const (
	// Client -> server.
	EventJoinRoom    EventType = "join_room"
	EventSendMessage EventType = "send_message"

	// Server -> client.
	EventReceiveMessage  EventType = "receive_message"
	EventNewMessage      EventType = "new_message"
	EventNewNotification EventType = "new_notification"
	EventError           EventType = "error"
)

// IncomingEvent is what the client sends to the server.
type IncomingEvent struct {
	Type EventType `json:"type"`

	// For join_room: the user id whose room to join.
	Room string `json:"room,omitempty"`

	// For send_message.
	ReceiverID string `json:"receiver_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

// OutgoingEvent is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// RelayPayload is the verbatim client-to-client relay delivered as
// receive_message. It is a UI-responsiveness shortcut: the authoritative
// record is the one written through POST /api/messages, and clients must
// reconcile by the persisted message id once that response returns.
type RelayPayload struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}
