package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/kvstore"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/community"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/promptstore"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
	"github.com/fgb-andu/reelprompt-api/pkg/service/auth"
	"github.com/fgb-andu/reelprompt-api/pkg/service/billing"
	"github.com/fgb-andu/reelprompt-api/pkg/service/promptgen"
	"github.com/fgb-andu/reelprompt-api/pkg/service/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	maxWebhookBytes = 65536
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pinger reports whether the database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Auth      *auth.Service
	Users     *userprovider.UserProvider
	Prompts   *promptstore.Store
	Community *community.Store
	Generator *promptgen.Service
	Limiter   *ratelimit.Limiter
	Billing   *billing.Service
	DB        Pinger
	// Cache is optional and only feeds the health payload.
	Cache kvstore.StatsReporter

	AllowedOrigins []string
	SecureCookies  bool
	Logger         *zap.Logger
}

type Handler struct {
	auth      *auth.Service
	users     *userprovider.UserProvider
	prompts   *promptstore.Store
	community *community.Store
	generator *promptgen.Service
	limiter   *ratelimit.Limiter
	billing   *billing.Service
	db        Pinger
	cache     kvstore.StatsReporter

	allowedOrigins []string
	secureCookies  bool
	log            *zap.Logger
}

func NewHandler(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		auth:           d.Auth,
		users:          d.Users,
		prompts:        d.Prompts,
		community:      d.Community,
		generator:      d.Generator,
		limiter:        d.Limiter,
		billing:        d.Billing,
		db:             d.DB,
		cache:          d.Cache,
		allowedOrigins: d.AllowedOrigins,
		secureCookies:  d.SecureCookies,
		log:            log.Named("api"),
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Prompt-Source", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.HandleRegister)
			r.Post("/login", h.HandleLogin)
			r.Post("/google", h.HandleGoogleLogin)
			r.Post("/logout", h.HandleLogout)
			r.Post("/forgot-password", h.HandleForgotPassword)
			r.Post("/reset-password", h.HandleResetPassword)
		})
		r.With(h.RequireAuth).Get("/me", h.HandleMe)

		r.With(h.OptionalAuth, h.RateLimit).Post("/generate-prompt", h.HandleGeneratePrompt)
		r.With(h.RequireAuth, h.RateLimit).Post("/enhance-prompt", h.HandleEnhancePrompt)

		r.Route("/prompts", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/", h.HandleListPrompts)
			r.Post("/", h.HandleCreatePrompt)
			r.Get("/{id}", h.HandleGetPrompt)
			r.Patch("/{id}", h.HandleUpdatePrompt)
			r.Delete("/{id}", h.HandleDeletePrompt)
		})

		r.Route("/posts", func(r chi.Router) {
			r.With(h.OptionalAuth).Get("/", h.HandleListPosts)
			r.With(h.OptionalAuth).Get("/{id}", h.HandleGetPost)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Post("/", h.HandleCreatePost)
				r.Delete("/{id}", h.HandleDeletePost)
				r.Post("/{id}/comments", h.HandleAddComment)
				r.Post("/{id}/like", h.HandleToggleLike)
			})
		})

		r.Route("/billing", func(r chi.Router) {
			r.Post("/webhook", h.HandleBillingWebhook)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Post("/create-checkout-session", h.HandleCreateCheckoutSession)
				r.Post("/portal-session", h.HandlePortalSession)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAuth, h.RequireAdmin)
			r.Get("/users", h.HandleAdminListUsers)
			r.Patch("/users/{id}/status", h.HandleAdminSetStatus)
		})
	})

	return r
}

type messageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Helper functions for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, messageResponse{OK: false, Message: message})
}

// internalError logs err and answers with a generic 500.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(msg, zap.String("request_id", middleware.GetReqID(r.Context())), zap.String("path", r.URL.Path), zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

var errBodyTooLarge = errors.New("request body too large")

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
