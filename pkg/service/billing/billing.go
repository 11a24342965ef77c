package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

var (
	ErrUnknownPlan      = errors.New("unknown plan")
	ErrDisabled         = errors.New("billing is not configured")
	ErrNoCustomer       = errors.New("no billing account for this user")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrStatusUpdate     = errors.New("failed to update subscription status")
)

// ProviderError carries a billing provider message that is safe to show
// the client, such as a declined card.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Users is the part of the credential store billing needs.
type Users interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	SetSubscriptionStatus(ctx context.Context, userID string, status domain.SubscriptionStatus) error
}

type Config struct {
	// WebhookSecret verifies Stripe-Signature. When empty, events are
	// accepted unverified.
	WebhookSecret   string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
}

type Service struct {
	provider Provider
	users    Users
	catalog  Catalog
	audit    AuditLog
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

// New returns a billing service. provider may be nil when no secret key is
// configured; checkout and portal then fail with ErrDisabled while webhooks
// still work.
func New(provider Provider, users Users, catalog Catalog, audit AuditLog, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("billing")
	if cfg.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhook events will be accepted without signature verification")
	}
	return &Service{
		provider: provider,
		users:    users,
		catalog:  catalog,
		audit:    audit,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// CreateCheckoutSession starts a hosted checkout for planID, creating the
// provider customer on first use.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, planID string) (*CheckoutSession, error) {
	plan, err := s.catalog.Lookup(planID)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, ErrDisabled
	}

	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		UserID:     userID,
		Plan:       plan,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		s.log.Error("checkout session failed", zap.String("user_id", userID), zap.String("plan_id", planID), zap.Error(err))
		return nil, mapProviderError(err)
	}

	s.log.Info("checkout session created", zap.String("user_id", userID), zap.String("plan_id", planID), zap.String("session_id", sess.ID))
	return sess, nil
}

// CreatePortalSession returns a customer portal URL for a user that has
// already been through checkout.
func (s *Service) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	if s.provider == nil {
		return "", ErrDisabled
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}

	url, err := s.provider.CreatePortalSession(ctx, *user.StripeCustomerID, s.cfg.PortalReturnURL)
	if err != nil {
		s.log.Error("portal session failed", zap.String("user_id", userID), zap.Error(err))
		return "", mapProviderError(err)
	}
	return url, nil
}

func (s *Service) ensureCustomer(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := s.provider.CreateCustomer(ctx, user.Email, user.ID)
	if err != nil {
		s.log.Error("customer creation failed", zap.String("user_id", userID), zap.Error(err))
		return "", mapProviderError(err)
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", fmt.Errorf("failed to store customer id: %w", err)
	}
	s.log.Info("billing customer created", zap.String("user_id", userID), zap.String("customer_id", customerID))
	return customerID, nil
}

// mapProviderError turns card and request errors into a ProviderError.
// Everything else is returned unchanged and treated as internal.
func mapProviderError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch serr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return &ProviderError{Message: serr.Msg}
		}
	}
	return err
}
