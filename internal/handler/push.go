package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bloghub/internal/middleware"
	"github.com/bloghub/internal/push"
	"github.com/bloghub/internal/storage"
)

// PushHandler manages Web Push subscriptions. Subscriptions are accepted even
// when VAPID keys are absent; only sending is disabled then.
type PushHandler struct {
	subs           storage.PushSubscriptionStore
	vapidPublicKey string
}

func NewPushHandler(subs storage.PushSubscriptionStore, vapidPublicKey string) *PushHandler {
	return &PushHandler{subs: subs, vapidPublicKey: vapidPublicKey}
}

// VAPIDPublic serves the public key the browser needs to subscribe.
func (h *PushHandler) VAPIDPublic(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(h.vapidPublicKey))
}

// Subscribe stores the caller's browser subscription verbatim.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	raw, err := io.ReadAll(io.LimitReader(r.Body, 8192))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !push.ValidSubscription(raw) {
		writeError(w, http.StatusBadRequest, "subscription (endpoint, keys.p256dh, keys.auth) required")
		return
	}

	if err := h.subs.AddSubscription(r.Context(), userID, string(raw)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unsubscribe removes the caller's subscription with the given endpoint.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}

	list, err := h.subs.ListSubscriptions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get subscriptions")
		return
	}
	kept := make([]string, 0, len(list))
	for _, item := range list {
		var sub push.Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != req.Endpoint {
			kept = append(kept, item)
		}
	}
	if err := h.subs.ReplaceSubscriptions(r.Context(), userID, kept); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update subscriptions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
