package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bloghub/internal/middleware"
	"github.com/bloghub/internal/storage/memory"
)

const validSub = `{"endpoint":"https://push.example/s1","keys":{"p256dh":"k1","auth":"k2"}}`

func pushRequest(method, path, body, userID string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	return r.WithContext(middleware.WithUserID(r.Context(), userID))
}

func TestPushHandler_Subscribe(t *testing.T) {
	req := require.New(t)
	store := memory.New()
	h := NewPushHandler(store, "pub-key")

	w := httptest.NewRecorder()
	h.Subscribe(w, pushRequest(http.MethodPost, "/api/push/subscribe", validSub, "alice"))
	req.Equal(http.StatusNoContent, w.Code)

	subs, err := store.ListSubscriptions(context.Background(), "alice")
	req.NoError(err)
	req.Equal([]string{validSub}, subs)
}

func TestPushHandler_SubscribeRejectsInvalid(t *testing.T) {
	h := NewPushHandler(memory.New(), "pub-key")

	for _, body := range []string{`{}`, `not json`, `{"endpoint":"https://x"}`} {
		w := httptest.NewRecorder()
		h.Subscribe(w, pushRequest(http.MethodPost, "/api/push/subscribe", body, "alice"))
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestPushHandler_Unsubscribe(t *testing.T) {
	req := require.New(t)
	store := memory.New()
	ctx := context.Background()
	req.NoError(store.AddSubscription(ctx, "alice", validSub))
	other := `{"endpoint":"https://push.example/s2","keys":{"p256dh":"k1","auth":"k2"}}`
	req.NoError(store.AddSubscription(ctx, "alice", other))

	h := NewPushHandler(store, "pub-key")
	w := httptest.NewRecorder()
	h.Unsubscribe(w, pushRequest(http.MethodDelete, "/api/push/subscribe", `{"endpoint":"https://push.example/s1"}`, "alice"))
	req.Equal(http.StatusNoContent, w.Code)

	subs, err := store.ListSubscriptions(ctx, "alice")
	req.NoError(err)
	req.Equal([]string{other}, subs)
}

func TestPushHandler_VAPIDPublic(t *testing.T) {
	req := require.New(t)

	h := NewPushHandler(memory.New(), "pub-key")
	w := httptest.NewRecorder()
	h.VAPIDPublic(w, httptest.NewRequest(http.MethodGet, "/api/push/vapid-public", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal("pub-key", w.Body.String())

	h = NewPushHandler(memory.New(), "")
	w = httptest.NewRecorder()
	h.VAPIDPublic(w, httptest.NewRequest(http.MethodGet, "/api/push/vapid-public", nil))
	req.Equal(http.StatusServiceUnavailable, w.Code)
}
