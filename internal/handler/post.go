package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bloghub/internal/fanout"
	"github.com/bloghub/internal/logger"
	"github.com/bloghub/internal/middleware"
	"github.com/bloghub/internal/model"
	"github.com/bloghub/internal/repository"
)

// PostHandler serves the write-side triggers of the fan-out pipeline: posts,
// likes, comments and follows. Each trigger persists its own record first;
// the resulting notification is created and emitted through the coordinator
// and never fails the request.
type PostHandler struct {
	postRepo    *repository.PostRepository
	userRepo    *repository.UserRepository
	coordinator *fanout.Coordinator
}

func NewPostHandler(postRepo *repository.PostRepository, userRepo *repository.UserRepository, coordinator *fanout.Coordinator) *PostHandler {
	return &PostHandler{postRepo: postRepo, userRepo: userRepo, coordinator: coordinator}
}

type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "title and content required")
		return
	}

	p := &model.Post{
		ID:        uuid.New().String(),
		AuthorID:  userID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.postRepo.Create(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	posts, err := h.postRepo.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postId")
	if !validID(postID) {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	p, err := h.postRepo.GetByID(r.Context(), postID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get post")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Like toggles the caller's like on a post. Liking notifies the post author
// unless an identical unread like notification already exists; unliking never
// retracts a notification.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	postID := chi.URLParam(r, "postId")
	if !validID(postID) {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	p, err := h.postRepo.GetByID(r.Context(), postID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get post")
		return
	}

	liked, err := h.postRepo.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to toggle like")
		return
	}
	if liked {
		if _, err := h.coordinator.NotifyLike(r.Context(), p.AuthorID, userID, postID); err != nil {
			logger.Errorf("notify like post=%s: %v", postID, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

type addCommentRequest struct {
	Text string `json:"text"`
}

// AddComment persists a comment and notifies the post author with the
// comment text.
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	postID := chi.URLParam(r, "postId")
	if !validID(postID) {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}

	p, err := h.postRepo.GetByID(r.Context(), postID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get post")
		return
	}

	c := &model.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    userID,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.postRepo.AddComment(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	if _, err := h.coordinator.NotifyComment(r.Context(), p.AuthorID, userID, postID, req.Text); err != nil {
		logger.Errorf("notify comment post=%s: %v", postID, err)
	}
	writeJSON(w, http.StatusCreated, c)
}

// Follow records the caller following userId and notifies the followed user.
// Re-following an already followed user is a no-op and produces no second
// notification.
func (h *PostHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	followeeID := chi.URLParam(r, "userId")
	if !validID(followeeID) {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if followeeID == userID {
		writeError(w, http.StatusBadRequest, "cannot follow yourself")
		return
	}
	exists, err := h.userRepo.Exists(r.Context(), followeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check user")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	created, err := h.postRepo.Follow(r.Context(), userID, followeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to follow")
		return
	}
	if created {
		if _, err := h.coordinator.NotifyFollow(r.Context(), followeeID, userID); err != nil {
			logger.Errorf("notify follow user=%s: %v", followeeID, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"following": true})
}

func (h *PostHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	followeeID := chi.URLParam(r, "userId")
	if !validID(followeeID) {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.postRepo.Unfollow(r.Context(), userID, followeeID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unfollow")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"following": false})
}
