package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	jwtdecode "github.com/fgb-andu/reelprompt-api/internal"
	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
	"go.uber.org/zap"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	DefaultResetTTL   = time.Hour
	resetTokenBytes   = 32
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrGoogleDisabled     = errors.New("google login is not configured")
	ErrInvalidGoogleToken = errors.New("invalid google credential")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// ValidationError reports client input that must be corrected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Users is the part of the credential store the auth service needs.
type Users interface {
	CreateUser(ctx context.Context, in userprovider.NewUser) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	GetUserByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	SetSubscriptionStatus(ctx context.Context, userID string, status domain.SubscriptionStatus) error
	SetGoogleID(ctx context.Context, userID, googleID string) error
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	SetPassword(ctx context.Context, userID, passwordHash string) error
}

type GoogleVerifier interface {
	Verify(token string) (*jwtdecode.GoogleIdentity, error)
}

// ResetNotifier delivers password reset links.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *domain.User, link string) error
}

// LogNotifier writes reset links to the log. It stands in for an email
// sender in development.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) SendPasswordReset(_ context.Context, user *domain.User, link string) error {
	n.Log.Info("password reset requested", zap.String("user_id", user.ID), zap.String("email", user.Email), zap.String("link", link))
	return nil
}

type Options struct {
	Hasher   PasswordHandler
	Google   GoogleVerifier
	Policy   *domain.EntitlementPolicy
	Notifier ResetNotifier
	// ResetURL is the client page that accepts ?token=.
	ResetURL string
	ResetTTL time.Duration
	Logger   *zap.Logger
}

type Service struct {
	users    Users
	tokens   *TokenIssuer
	hasher   PasswordHandler
	google   GoogleVerifier
	policy   *domain.EntitlementPolicy
	notifier ResetNotifier
	resetURL string
	resetTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewService(users Users, tokens *TokenIssuer, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("auth")

	s := &Service{
		users:    users,
		tokens:   tokens,
		hasher:   opts.Hasher,
		google:   opts.Google,
		policy:   opts.Policy,
		notifier: opts.Notifier,
		resetURL: opts.ResetURL,
		resetTTL: opts.ResetTTL,
		log:      log,
		now:      time.Now,
	}
	if s.hasher == nil {
		s.hasher = NewArgon2()
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Log: log}
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTTL
	}
	return s
}

// Session is a signed-in user and the token that proves it.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// IsAdmin reports whether email has admin access.
func (s *Service) IsAdmin(email string) bool {
	return s.policy.IsAdmin(email)
}

func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, userprovider.NewUser{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: &hash,
	})
	if errors.Is(err, userprovider.ErrUserExists) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.startSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, &ValidationError{Field: "email", Message: "Email and password are required"}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, userprovider.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil || *user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, *user.PasswordHash)
	if err != nil {
		s.log.Error("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

// GoogleLogin signs in with a Google ID token. It finds the user by Google
// id, then links an existing account with the same verified email, and
// otherwise creates a Google-only account.
func (s *Service) GoogleLogin(ctx context.Context, credential string) (*Session, error) {
	if s.google == nil {
		return nil, ErrGoogleDisabled
	}
	if strings.TrimSpace(credential) == "" {
		return nil, &ValidationError{Field: "credential", Message: "Google credential is required"}
	}

	identity, err := s.google.Verify(credential)
	if err != nil {
		s.log.Warn("google token rejected", zap.Error(err))
		return nil, ErrInvalidGoogleToken
	}

	user, err := s.users.GetUserByGoogleID(ctx, identity.Subject)
	if err == nil {
		return s.startSession(ctx, user)
	}
	if !errors.Is(err, userprovider.ErrUserNotFound) {
		return nil, err
	}

	if identity.Email == "" || !identity.EmailVerified {
		return nil, ErrInvalidGoogleToken
	}

	user, err = s.users.GetUserByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if err := s.users.SetGoogleID(ctx, user.ID, identity.Subject); err != nil {
			return nil, fmt.Errorf("failed to link google account: %w", err)
		}
		user.GoogleID = &identity.Subject
		s.log.Info("google account linked", zap.String("user_id", user.ID))
	case errors.Is(err, userprovider.ErrUserNotFound):
		user, err = s.users.CreateUser(ctx, userprovider.NewUser{
			Email:    identity.Email,
			Name:     identity.Name,
			GoogleID: &identity.Subject,
		})
		if errors.Is(err, userprovider.ErrUserExists) {
			return nil, ErrEmailTaken
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("user registered with google", zap.String("user_id", user.ID))
	default:
		return nil, err
	}

	return s.startSession(ctx, user)
}

// ForgotPassword stores a single-use reset token for email and sends the
// link. Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email, err := validateEmail(email)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, userprovider.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	if err := s.users.SetResetToken(ctx, user.ID, hashToken(token), s.now().Add(s.resetTTL).UTC()); err != nil {
		return err
	}

	link := s.resetURL + "?token=" + token
	if err := s.notifier.SendPasswordReset(ctx, user, link); err != nil {
		s.log.Error("failed to send reset link", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword replaces the password of the user holding token. The token
// is cleared, so it works once.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidResetToken
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	user, err := s.users.GetUserByResetTokenHash(ctx, hashToken(token))
	if errors.Is(err, userprovider.ErrUserNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	if user.ResetTokenExpiresAt == nil || !s.now().Before(*user.ResetTokenExpiresAt) {
		return ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.SetPassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.log.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetUser(ctx, userID)
}

// startSession is the single point where the entitlement policy runs before
// a token is issued.
func (s *Service) startSession(ctx context.Context, user *domain.User) (*Session, error) {
	if s.policy.Apply(user) {
		if err := s.users.SetSubscriptionStatus(ctx, user.ID, user.SubscriptionStatus); err != nil {
			return nil, fmt.Errorf("failed to apply entitlement: %w", err)
		}
		s.log.Info("entitlement granted", zap.String("user_id", user.ID), zap.String("status", string(user.SubscriptionStatus)))
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func validateEmail(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", &ValidationError{Field: "email", Message: "Email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Message: "Invalid email format"}
	}
	return email, nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return &ValidationError{Field: "password", Message: "Password is required"}
	case len(password) < MinPasswordLength:
		return &ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)}
	case len(password) > MaxPasswordLength:
		return &ValidationError{Field: "password", Message: fmt.Sprintf("Password must be at most %d characters", MaxPasswordLength)}
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
