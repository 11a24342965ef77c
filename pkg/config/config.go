package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const minSecretLength = 32

type Config struct {
	Env          string
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Google       GoogleConfig
	Stripe       StripeConfig
	OpenAI       OpenAIConfig
	Redis        RedisConfig
	Entitlements EntitlementConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ClientURL      string
}

type DatabaseConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
}

type GoogleConfig struct {
	ClientID string
}

type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	PriceProMonthly string
	PriceProYearly  string
	PriceLifetime   string
	SuccessURL      string
	CancelURL       string
	AuditLogPath    string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type RedisConfig struct {
	URL string
}

type EntitlementConfig struct {
	TestAccountEmails []string
	TestAccountStatus string
	AdminEmails       []string
}

type LogConfig struct {
	Level string
}

// Load reads the configuration from the environment. It never fails; call
// Validate to check that the core variables are present.
func Load() *Config {
	clientURL := strings.TrimRight(getenv("CLIENT_URL", "http://localhost:5173"), "/")

	return &Config{
		Env: getenv("ENV", "development"),
		Server: ServerConfig{
			Port:           getenv("PORT", "5801"),
			AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", clientURL)),
			ClientURL:      clientURL,
		},
		Database: DatabaseConfig{
			URL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Google: GoogleConfig{
			ClientID: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		},
		Stripe: StripeConfig{
			SecretKey:       os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceProMonthly: os.Getenv("STRIPE_PRICE_PRO_MONTHLY"),
			PriceProYearly:  os.Getenv("STRIPE_PRICE_PRO_YEARLY"),
			PriceLifetime:   os.Getenv("STRIPE_PRICE_LIFETIME"),
			SuccessURL:      getenv("STRIPE_SUCCESS_URL", clientURL+"/billing/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:       getenv("STRIPE_CANCEL_URL", clientURL+"/pricing"),
			AuditLogPath:    getenv("BILLING_AUDIT_LOG", "billing-audit.log"),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getenv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Redis: RedisConfig{
			URL: strings.TrimSpace(os.Getenv("REDIS_URL")),
		},
		Entitlements: EntitlementConfig{
			TestAccountEmails: splitList(os.Getenv("TEST_ACCOUNT_EMAILS")),
			TestAccountStatus: getenv("TEST_ACCOUNT_STATUS", "pro"),
			AdminEmails:       splitList(os.Getenv("ADMIN_EMAILS")),
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
	}
}

// Validate returns an error listing every missing core variable, and a list
// of warnings for optional integrations that are not configured.
func (c *Config) Validate() (warnings []string, err error) {
	var result *multierror.Error

	if c.Database.URL == "" {
		result = multierror.Append(result, errors.New("DATABASE_URL is required"))
	}
	switch {
	case c.Auth.JWTSecret == "":
		result = multierror.Append(result, errors.New("JWT_SECRET is required"))
	case len(c.Auth.JWTSecret) < minSecretLength:
		result = multierror.Append(result, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}

	optional := []struct {
		name  string
		value string
		what  string
	}{
		{"GOOGLE_CLIENT_ID", c.Google.ClientID, "Google login disabled"},
		{"STRIPE_SECRET_KEY", c.Stripe.SecretKey, "checkout disabled"},
		{"STRIPE_WEBHOOK_SECRET", c.Stripe.WebhookSecret, "webhook events will be accepted unverified"},
		{"OPENAI_API_KEY", c.OpenAI.APIKey, "prompt generation will use fallback content"},
		{"REDIS_URL", c.Redis.URL, "rate limits and cache are process-local"},
	}
	for _, o := range optional {
		if o.value == "" {
			warnings = append(warnings, fmt.Sprintf("%s not set: %s", o.name, o.what))
		}
	}

	return warnings, result.ErrorOrNil()
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
