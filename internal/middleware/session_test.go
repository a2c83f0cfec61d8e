package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bloghub/internal/storage/memory"
)

func authedHandler(gotUser, gotToken *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUser = GetUserID(r.Context())
		*gotToken = GetSessionToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionAuth_BearerHeader(t *testing.T) {
	req := require.New(t)
	store := memory.New()
	req.NoError(store.SetSession(context.Background(), "tok-1", "alice"))

	var gotUser, gotToken string
	h := SessionAuth(store)(authedHandler(&gotUser, &gotToken))

	r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	r.Header.Set("Authorization", "Bearer tok-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.Equal("alice", gotUser)
	req.Equal("tok-1", gotToken)
}

func TestSessionAuth_QueryToken(t *testing.T) {
	req := require.New(t)
	store := memory.New()
	req.NoError(store.SetSession(context.Background(), "tok-2", "bob"))

	var gotUser, gotToken string
	h := SessionAuth(store)(authedHandler(&gotUser, &gotToken))

	r := httptest.NewRequest(http.MethodGet, "/ws?token=tok-2", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.Equal("bob", gotUser)
}

func TestSessionAuth_MissingToken(t *testing.T) {
	var gotUser, gotToken string
	h := SessionAuth(memory.New())(authedHandler(&gotUser, &gotToken))

	r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, gotUser)
}

func TestSessionAuth_UnknownToken(t *testing.T) {
	var gotUser, gotToken string
	h := SessionAuth(memory.New())(authedHandler(&gotUser, &gotToken))

	r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	r.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
