package api

import (
	"errors"
	"net/http"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
	"github.com/fgb-andu/reelprompt-api/pkg/service/auth"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	Credential string `json:"credential"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type UserView struct {
	*domain.User
	IsAdmin bool `json:"is_admin"`
}

type AuthResponse struct {
	OK    bool     `json:"ok"`
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

type UserResponse struct {
	OK   bool     `json:"ok"`
	User UserView `json:"user"`
}

func (h *Handler) view(u *domain.User) UserView {
	return UserView{User: u, IsAdmin: h.auth.IsAdmin(u.Email)}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondWithJSON(w, http.StatusCreated, AuthResponse{OK: true, User: h.view(session.User), Token: session.Token})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondWithJSON(w, http.StatusOK, AuthResponse{OK: true, User: h.view(session.User), Token: session.Token})
}

func (h *Handler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.auth.GoogleLogin(r.Context(), req.Credential)
	if err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	h.setSessionCookie(w, session.Token, session.ExpiresAt)
	respondWithJSON(w, http.StatusOK, AuthResponse{OK: true, User: h.view(session.User), Token: session.Token})
}

// HandleLogout clears the cookie. Tokens are stateless, so one copied
// elsewhere stays valid until it expires.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	respondWithJSON(w, http.StatusOK, messageResponse{OK: true, Message: "Logged out"})
}

func (h *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{OK: true, Message: "If that email is registered, a reset link has been sent."})
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{OK: true, Message: "Password updated"})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	user, err := h.auth.Me(r.Context(), id.ID)
	if errors.Is(err, userprovider.ErrUserNotFound) {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to load user", err)
		return
	}
	respondWithJSON(w, http.StatusOK, UserResponse{OK: true, User: h.view(user)})
}

func (h *Handler) respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, auth.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidGoogleToken):
		respondWithError(w, http.StatusUnauthorized, "Invalid Google credential")
	case errors.Is(err, auth.ErrInvalidResetToken):
		respondWithError(w, http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, auth.ErrGoogleDisabled):
		h.internalError(w, r, "google login requested but not configured", err)
	default:
		h.internalError(w, r, "auth request failed", err)
	}
}
