package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bloghub/internal/fanout"
	"github.com/bloghub/internal/middleware"
	"github.com/bloghub/internal/repository"
)

// MessageHandler serves the conversation endpoints. Writes go through the
// fan-out coordinator so persistence and live delivery stay in one place.
type MessageHandler struct {
	msgRepo     *repository.MessageRepository
	userRepo    *repository.UserRepository
	coordinator *fanout.Coordinator
}

func NewMessageHandler(msgRepo *repository.MessageRepository, userRepo *repository.UserRepository, coordinator *fanout.Coordinator) *MessageHandler {
	return &MessageHandler{msgRepo: msgRepo, userRepo: userRepo, coordinator: coordinator}
}

// GetConversations returns the caller's conversation list: one entry per
// peer, latest message each, newest first.
func (h *MessageHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.msgRepo.GetConversations(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// GetMessages returns the full transcript between the caller and peerId,
// oldest first.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID := chi.URLParam(r, "peerId")
	if !validID(peerID) {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	exists, err := h.userRepo.Exists(r.Context(), peerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check user")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	messages, err := h.msgRepo.GetBetween(r.Context(), userID, peerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type createMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

// CreateMessage persists a direct message and pushes new_message into the
// receiver's room.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	if req.ReceiverID == "" {
		writeError(w, http.StatusBadRequest, "receiver_id required")
		return
	}
	if !validID(req.ReceiverID) {
		writeError(w, http.StatusBadRequest, "invalid receiver_id")
		return
	}

	exists, err := h.userRepo.Exists(r.Context(), req.ReceiverID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check receiver")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "receiver not found")
		return
	}

	msg, err := h.coordinator.SendMessage(r.Context(), userID, req.ReceiverID, req.Text)
	if err != nil {
		if errors.Is(err, fanout.ErrEmptyText) {
			writeError(w, http.StatusBadRequest, "text required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type markReadRequest struct {
	SenderID string `json:"sender_id"`
}

// MarkRead marks all messages from sender_id to the caller as read.
// Idempotent: repeating the call reports zero updated rows.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.SenderID = strings.TrimSpace(req.SenderID)
	if req.SenderID == "" {
		writeError(w, http.StatusBadRequest, "sender_id required")
		return
	}
	if !validID(req.SenderID) {
		writeError(w, http.StatusBadRequest, "invalid sender_id")
		return
	}

	updated, err := h.msgRepo.MarkRead(r.Context(), userID, req.SenderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// UnreadCount returns the number of unread messages addressed to the caller.
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	count, err := h.msgRepo.GetUnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get unread count")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
