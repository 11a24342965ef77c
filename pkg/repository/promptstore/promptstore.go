package promptstore

import (
	"context"
	"errors"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrPromptNotFound = errors.New("prompt not found")

// Store keeps each user's prompt history. Every query is scoped to the
// owning user, so a prompt owned by someone else reads as not found.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, userID, title, input, output string) (*domain.Prompt, error) {
	now := time.Now().UTC()
	prompt := &domain.Prompt{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Input:     input,
		Output:    output,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(prompt).Error; err != nil {
		return nil, err
	}
	return prompt, nil
}

func (s *Store) List(ctx context.Context, userID string, limit, offset int) ([]domain.Prompt, error) {
	prompts := []domain.Prompt{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&prompts).Error
	return prompts, err
}

func (s *Store) Get(ctx context.Context, userID, id string) (*domain.Prompt, error) {
	var prompt domain.Prompt
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&prompt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPromptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prompt, nil
}

type Update struct {
	Title      *string
	IsFavorite *bool
}

func (s *Store) Update(ctx context.Context, userID, id string, u Update) (*domain.Prompt, error) {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.IsFavorite != nil {
		fields["is_favorite"] = *u.IsFavorite
	}

	res := s.db.WithContext(ctx).Model(&domain.Prompt{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrPromptNotFound
	}
	return s.Get(ctx, userID, id)
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Prompt{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPromptNotFound
	}
	return nil
}
