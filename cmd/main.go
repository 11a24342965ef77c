package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	jwtdecode "github.com/fgb-andu/reelprompt-api/internal"
	"github.com/fgb-andu/reelprompt-api/pkg/api"
	"github.com/fgb-andu/reelprompt-api/pkg/config"
	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/fgb-andu/reelprompt-api/pkg/kvstore"
	"github.com/fgb-andu/reelprompt-api/pkg/logger"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/community"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/database"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/promptstore"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
	"github.com/fgb-andu/reelprompt-api/pkg/service/auth"
	"github.com/fgb-andu/reelprompt-api/pkg/service/billing"
	"github.com/fgb-andu/reelprompt-api/pkg/service/promptgen"
	"github.com/fgb-andu/reelprompt-api/pkg/service/ratelimit"
	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	zlog, err := logger.New(!cfg.IsProduction(), logger.LogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	warnings, err := cfg.Validate()
	if err != nil {
		zlog.Fatal("invalid configuration", zap.Error(err))
	}
	for _, w := range warnings {
		zlog.Warn(w)
	}

	db, dialect, err := database.Open(database.Config{URL: cfg.Database.URL})
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db, dialect); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zlog.Fatal("failed to access database handle", zap.Error(err))
	}

	store, closeStore := openStore(cfg, zlog)
	defer closeStore()

	users := userprovider.NewUserProvider(db)
	policy := domain.NewEntitlementPolicy(
		cfg.Entitlements.TestAccountEmails,
		domain.SubscriptionStatus(cfg.Entitlements.TestAccountStatus),
		cfg.Entitlements.AdminEmails,
	)

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		zlog.Fatal("failed to create token issuer", zap.Error(err))
	}
	authOpts := auth.Options{
		Policy:   policy,
		ResetURL: cfg.Server.ClientURL + "/reset-password",
		Logger:   zlog,
	}
	if cfg.Google.ClientID != "" {
		verifier, err := jwtdecode.NewGoogleVerifier(cfg.Google.ClientID, jwtdecode.GoogleCertsURL)
		if err != nil {
			zlog.Fatal("failed to load Google signing keys", zap.Error(err))
		}
		authOpts.Google = verifier
	}
	authSvc := auth.NewService(users, tokens, authOpts)

	var llm promptgen.Completer
	if cfg.OpenAI.APIKey != "" {
		llm = openai.NewClient(cfg.OpenAI.APIKey)
	}
	generator := promptgen.New(llm, store, promptgen.Config{Model: cfg.OpenAI.Model}, zlog)

	audit, err := billing.NewFileAuditLog(cfg.Stripe.AuditLogPath)
	if err != nil {
		zlog.Fatal("failed to open billing audit log", zap.Error(err))
	}
	defer audit.Close()
	var provider billing.Provider
	if cfg.Stripe.SecretKey != "" {
		provider = billing.NewStripeProvider(cfg.Stripe.SecretKey)
	}
	catalog := billing.NewCatalog(cfg.Stripe.PriceProMonthly, cfg.Stripe.PriceProYearly, cfg.Stripe.PriceLifetime)
	billingSvc := billing.New(provider, users, catalog, audit, billing.Config{
		WebhookSecret:   cfg.Stripe.WebhookSecret,
		SuccessURL:      cfg.Stripe.SuccessURL,
		CancelURL:       cfg.Stripe.CancelURL,
		PortalReturnURL: cfg.Server.ClientURL + "/account",
	}, zlog)

	handler := api.NewHandler(api.Deps{
		Auth:           authSvc,
		Users:          users,
		Prompts:        promptstore.New(db),
		Community:      community.New(db),
		Generator:      generator,
		Limiter:        ratelimit.New(store, ratelimit.Config{}),
		Billing:        billingSvc,
		DB:             sqlDB,
		Cache:          store,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
		Logger:         zlog,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		zlog.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("database", string(dialect)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zlog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

// storeBackend is a kvstore that also reports cache stats for /api/health.
type storeBackend interface {
	kvstore.Store
	kvstore.StatsReporter
}

// openStore picks Redis when REDIS_URL is set and the in-process map
// otherwise.
func openStore(cfg *config.Config, zlog *zap.Logger) (storeBackend, func()) {
	if cfg.Redis.URL == "" {
		return kvstore.NewMemory(kvstore.MemoryConfig{}), func() {}
	}

	r, err := kvstore.NewRedis(cfg.Redis.URL, "reelprompt:")
	if err != nil {
		zlog.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		zlog.Fatal("failed to reach redis", zap.Error(err))
	}
	zlog.Info("using redis for rate limits and prompt cache")
	return r, func() { _ = r.Close() }
}
