package handler

import (
	"net/http"

	"github.com/bloghub/internal/middleware"
	"github.com/bloghub/internal/repository"
)

type NotificationHandler struct {
	notifRepo *repository.NotificationRepository
}

func NewNotificationHandler(notifRepo *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifRepo: notifRepo}
}

// List returns the caller's notifications, newest first, with sender
// summaries and post titles resolved.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	notifs, err := h.notifRepo.GetByRecipient(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get notifications")
		return
	}
	writeJSON(w, http.StatusOK, notifs)
}

// MarkAllRead marks every unread notification of the caller as read.
// Idempotent.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	updated, err := h.notifRepo.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// UnreadCount returns the caller's unread notification count, always derived
// from the read flags.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	count, err := h.notifRepo.GetUnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get unread count")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
