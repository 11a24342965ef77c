package userprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UserProvider is the credential store.
type UserProvider struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUserProvider(db *gorm.DB) *UserProvider {
	return &UserProvider{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type NewUser struct {
	Email        string
	Name         string
	PasswordHash *string
	GoogleID     *string
	Status       domain.SubscriptionStatus
}

// CreateUser inserts a new free user. The email must be unique.
func (p *UserProvider) CreateUser(ctx context.Context, in NewUser) (*domain.User, error) {
	now := p.now()
	status := in.Status
	if status == "" {
		status = domain.SubscriptionFree
	}

	user := &domain.User{
		ID:                 uuid.NewString(),
		Email:              domain.NormalizeEmail(in.Email),
		Name:               in.Name,
		PasswordHash:       in.PasswordHash,
		GoogleID:           in.GoogleID,
		SubscriptionStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if !user.HasCredential() {
		return nil, errors.New("user needs a password or a google id")
	}

	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (p *UserProvider) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return p.first(ctx, "id = ?", id)
}

func (p *UserProvider) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return p.first(ctx, "email = ?", domain.NormalizeEmail(email))
}

func (p *UserProvider) GetUserByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return p.first(ctx, "google_id = ?", googleID)
}

func (p *UserProvider) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return p.first(ctx, "stripe_customer_id = ?", customerID)
}

func (p *UserProvider) GetUserByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	return p.first(ctx, "reset_token_hash = ?", tokenHash)
}

func (p *UserProvider) first(ctx context.Context, query string, arg string) (*domain.User, error) {
	if arg == "" {
		return nil, ErrUserNotFound
	}
	var user domain.User
	err := p.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns users newest first, with the total count.
func (p *UserProvider) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int64, error) {
	var total int64
	if err := p.db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []domain.User
	err := p.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (p *UserProvider) SetSubscriptionStatus(ctx context.Context, userID string, status domain.SubscriptionStatus) error {
	return p.update(ctx, userID, map[string]any{"subscription_status": status})
}

func (p *UserProvider) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return p.update(ctx, userID, map[string]any{"stripe_customer_id": customerID})
}

func (p *UserProvider) SetGoogleID(ctx context.Context, userID, googleID string) error {
	return p.update(ctx, userID, map[string]any{"google_id": googleID})
}

func (p *UserProvider) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return p.update(ctx, userID, map[string]any{
		"reset_token_hash":       tokenHash,
		"reset_token_expires_at": expiresAt.UTC(),
	})
}

// SetPassword stores a new password hash and clears any reset token.
func (p *UserProvider) SetPassword(ctx context.Context, userID, passwordHash string) error {
	return p.update(ctx, userID, map[string]any{
		"password_hash":          passwordHash,
		"reset_token_hash":       nil,
		"reset_token_expires_at": nil,
	})
}

func (p *UserProvider) update(ctx context.Context, userID string, fields map[string]any) error {
	fields["updated_at"] = p.now()
	res := p.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
