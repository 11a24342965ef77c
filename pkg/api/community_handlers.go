package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fgb-andu/reelprompt-api/pkg/repository/community"
	"github.com/fgb-andu/reelprompt-api/pkg/service/auth"
	"github.com/go-chi/chi/v5"
)

type CreatePostRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Prompt string `json:"prompt"`
}

type CommentRequest struct {
	Body string `json:"body"`
}

type LikeResponse struct {
	OK        bool  `json:"ok"`
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

func viewerID(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return id.ID
	}
	return ""
}

func (h *Handler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	posts, err := h.community.ListPosts(r.Context(), viewerID(r), limit, offset)
	if err != nil {
		h.internalError(w, r, "failed to list posts", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "posts": posts})
}

func (h *Handler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.community.GetPost(r.Context(), viewerID(r), chi.URLParam(r, "id"))
	if errors.Is(err, community.ErrPostNotFound) {
		respondWithError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to load post", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "post": post})
}

func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		respondWithError(w, http.StatusBadRequest, "Title is required")
		return
	}

	post, err := h.community.CreatePost(r.Context(), viewerID(r), title, strings.TrimSpace(req.Body), req.Prompt)
	if err != nil {
		h.internalError(w, r, "failed to create post", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "post": post})
}

func (h *Handler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	err := h.community.DeletePost(r.Context(), viewerID(r), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, community.ErrPostNotFound):
		respondWithError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, community.ErrNotOwner):
		respondWithError(w, http.StatusForbidden, "You can only delete your own posts")
	case err != nil:
		h.internalError(w, r, "failed to delete post", err)
	default:
		respondWithJSON(w, http.StatusOK, messageResponse{OK: true, Message: "Post deleted"})
	}
}

func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		respondWithError(w, http.StatusBadRequest, "Comment body is required")
		return
	}

	comment, err := h.community.AddComment(r.Context(), viewerID(r), chi.URLParam(r, "id"), body)
	if errors.Is(err, community.ErrPostNotFound) {
		respondWithError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to add comment", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "comment": comment})
}

func (h *Handler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	liked, count, err := h.community.ToggleLike(r.Context(), viewerID(r), chi.URLParam(r, "id"))
	if errors.Is(err, community.ErrPostNotFound) {
		respondWithError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to toggle like", err)
		return
	}
	respondWithJSON(w, http.StatusOK, LikeResponse{OK: true, Liked: liked, LikeCount: count})
}
