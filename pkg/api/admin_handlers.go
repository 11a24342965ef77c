package api

import (
	"errors"
	"net/http"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AdminUsersResponse struct {
	OK    bool          `json:"ok"`
	Users []domain.User `json:"users"`
	Total int64         `json:"total"`
}

type SetStatusRequest struct {
	Status domain.SubscriptionStatus `json:"status"`
}

func (h *Handler) HandleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, total, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.internalError(w, r, "failed to list users", err)
		return
	}
	respondWithJSON(w, http.StatusOK, AdminUsersResponse{OK: true, Users: users, Total: total})
}

func (h *Handler) HandleAdminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Status.Valid() {
		respondWithError(w, http.StatusBadRequest, "Status must be free, pro or lifetime")
		return
	}

	userID := chi.URLParam(r, "id")
	err := h.users.SetSubscriptionStatus(r.Context(), userID, req.Status)
	if errors.Is(err, userprovider.ErrUserNotFound) {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to set status", err)
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, "failed to load user", err)
		return
	}
	h.log.Info("subscription status set by admin", zap.String("user_id", userID), zap.String("status", string(req.Status)))
	respondWithJSON(w, http.StatusOK, UserResponse{OK: true, User: h.view(user)})
}
