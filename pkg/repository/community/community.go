package community

import (
	"context"
	"errors"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotOwner     = errors.New("post belongs to another user")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreatePost(ctx context.Context, userID, title, body, prompt string) (*domain.Post, error) {
	now := time.Now().UTC()
	post := &domain.Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns posts newest first. viewerID may be empty for guests.
func (s *Store) ListPosts(ctx context.Context, viewerID string, limit, offset int) ([]domain.Post, error) {
	posts := []domain.Post{}
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost returns a post with its comments, oldest comment first.
func (s *Store) GetPost(ctx context.Context, viewerID, id string) (*domain.Post, error) {
	var post domain.Post
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}

	posts := []domain.Post{post}
	if err := s.decorate(ctx, viewerID, posts); err != nil {
		return nil, err
	}
	post = posts[0]

	comments := []domain.Comment{}
	err = s.db.WithContext(ctx).
		Where("post_id = ?", id).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	post.Comments = comments
	return &post, nil
}

// DeletePost removes a post with its comments and likes. Only the author may
// delete it.
func (s *Store) DeletePost(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post domain.Post
		err := tx.Where("id = ?", id).First(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		if err != nil {
			return err
		}
		if post.UserID != userID {
			return ErrNotOwner
		}

		if err := tx.Where("post_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&domain.Like{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
}

func (s *Store) AddComment(ctx context.Context, userID, postID, body string) (*domain.Comment, error) {
	if err := s.ensurePost(ctx, postID); err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// ToggleLike likes the post, or removes the like when one exists. It
// returns the new state and the post's like count.
func (s *Store) ToggleLike(ctx context.Context, userID, postID string) (bool, int64, error) {
	if err := s.ensurePost(ctx, postID); err != nil {
		return false, 0, err
	}

	var liked bool
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&domain.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			like := &domain.Like{PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()}
			if err := tx.Create(like).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&domain.Like{}).Where("post_id = ?", postID).Count(&count).Error
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

func (s *Store) ensurePost(ctx context.Context, postID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

type likeCount struct {
	PostID string
	N      int64
}

// decorate fills author names, like counts and the viewer's like flag.
func (s *Store) decorate(ctx context.Context, viewerID string, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		authorIDs = append(authorIDs, p.UserID)
	}

	var counts []likeCount
	err := s.db.WithContext(ctx).Model(&domain.Like{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&counts).Error
	if err != nil {
		return err
	}
	countByPost := make(map[string]int64, len(counts))
	for _, c := range counts {
		countByPost[c.PostID] = c.N
	}

	var authors []domain.User
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return err
	}
	nameByID := make(map[string]string, len(authors))
	for _, a := range authors {
		nameByID[a.ID] = a.Name
	}

	likedByViewer := map[string]bool{}
	if viewerID != "" {
		var liked []string
		err := s.db.WithContext(ctx).Model(&domain.Like{}).
			Where("user_id = ? AND post_id IN ?", viewerID, ids).
			Pluck("post_id", &liked).Error
		if err != nil {
			return err
		}
		for _, id := range liked {
			likedByViewer[id] = true
		}
	}

	for i := range posts {
		posts[i].LikeCount = countByPost[posts[i].ID]
		posts[i].AuthorName = nameByID[posts[i].UserID]
		posts[i].LikedByMe = likedByViewer[posts[i].ID]
	}
	return nil
}
