package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bloghub/internal/middleware"
)

// Malformed ids must be rejected at the handler boundary, before any store
// access. Repositories are nil here on purpose: reaching one would panic the
// test, proving the id slipped past validation.
func TestHandlers_MalformedIDRejected(t *testing.T) {
	msgH := NewMessageHandler(nil, nil, nil)
	postH := NewPostHandler(nil, nil, nil)
	userH := NewUserHandler(nil, nil)

	r := chi.NewRouter()
	r.Get("/api/messages/{peerId}", msgH.GetMessages)
	r.Post("/api/messages", msgH.CreateMessage)
	r.Put("/api/messages/read", msgH.MarkRead)
	r.Get("/api/posts/{postId}", postH.Get)
	r.Post("/api/posts/{postId}/like", postH.Like)
	r.Post("/api/posts/{postId}/comments", postH.AddComment)
	r.Post("/api/follow/{userId}", postH.Follow)
	r.Delete("/api/follow/{userId}", postH.Unfollow)
	r.Get("/api/users/{userId}", userH.GetUser)

	cases := []struct {
		name, method, path, body string
	}{
		{"transcript peer", http.MethodGet, "/api/messages/not-a-uuid", ""},
		{"create message receiver", http.MethodPost, "/api/messages", `{"receiver_id":"not-a-uuid","text":"hi"}`},
		{"mark read sender", http.MethodPut, "/api/messages/read", `{"sender_id":"not-a-uuid"}`},
		{"get post", http.MethodGet, "/api/posts/42", ""},
		{"like post", http.MethodPost, "/api/posts/42/like", ""},
		{"comment on post", http.MethodPost, "/api/posts/42/comments", `{"text":"hi"}`},
		{"follow user", http.MethodPost, "/api/follow/42", ""},
		{"unfollow user", http.MethodDelete, "/api/follow/42", ""},
		{"get user", http.MethodGet, "/api/users/42", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body *strings.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			} else {
				body = strings.NewReader("")
			}
			rq := httptest.NewRequest(tc.method, tc.path, body)
			rq = rq.WithContext(middleware.WithUserID(rq.Context(), uuid.New().String()))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, rq)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
