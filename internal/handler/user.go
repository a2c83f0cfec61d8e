package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bloghub/internal/middleware"
	"github.com/bloghub/internal/model"
	"github.com/bloghub/internal/repository"
	"github.com/bloghub/internal/storage"
)

type UserHandler struct {
	userRepo *repository.UserRepository
	sessions storage.SessionStore
}

func NewUserHandler(userRepo *repository.UserRepository, sessions storage.SessionStore) *UserHandler {
	return &UserHandler{userRepo: userRepo, sessions: sessions}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	u, err := h.userRepo.GetByID(r.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !validID(userID) {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	u, err := h.userRepo.GetByID(r.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, u.Summary())
}

type devLoginRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type devLoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// DevLogin issues a session for a username, creating the user on first use.
// Only mounted with the -dev flag: in production sessions come from the
// external auth service.
func (h *UserHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	u, err := h.userRepo.GetByUsername(r.Context(), req.Username)
	if errors.Is(err, repository.ErrNotFound) {
		u = &model.User{
			ID:        uuid.New().String(),
			Username:  req.Username,
			Name:      req.Name,
			CreatedAt: time.Now().UTC(),
		}
		if u.Name == "" {
			u.Name = req.Username
		}
		err = h.userRepo.Create(r.Context(), u)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	token := uuid.New().String()
	if err := h.sessions.SetSession(r.Context(), token, u.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, devLoginResponse{Token: token, User: u})
}

// Logout revokes the presented session token.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetSessionToken(r.Context())
	if token != "" {
		if err := h.sessions.DeleteSession(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to logout")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
