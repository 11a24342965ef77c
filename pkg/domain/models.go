package domain

import (
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionFree     SubscriptionStatus = "free"
	SubscriptionPro      SubscriptionStatus = "pro"
	SubscriptionLifetime SubscriptionStatus = "lifetime"
)

// Valid reports whether s is one of the known statuses.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionFree, SubscriptionPro, SubscriptionLifetime:
		return true
	}
	return false
}

// Paid reports whether s grants paid access.
func (s SubscriptionStatus) Paid() bool {
	return s == SubscriptionPro || s == SubscriptionLifetime
}

func (s SubscriptionStatus) rank() int {
	switch s {
	case SubscriptionPro:
		return 1
	case SubscriptionLifetime:
		return 2
	}
	return 0
}

// User is a credential-store row. At least one of PasswordHash or GoogleID is set.
type User struct {
	ID                  string             `json:"id" gorm:"column:id;primaryKey"`
	Email               string             `json:"email" gorm:"column:email"`
	Name                string             `json:"name" gorm:"column:name"`
	PasswordHash        *string            `json:"-" gorm:"column:password_hash"`
	GoogleID            *string            `json:"-" gorm:"column:google_id"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status" gorm:"column:subscription_status"`
	StripeCustomerID    *string            `json:"-" gorm:"column:stripe_customer_id"`
	ResetTokenHash      *string            `json:"-" gorm:"column:reset_token_hash"`
	ResetTokenExpiresAt *time.Time         `json:"-" gorm:"column:reset_token_expires_at"`
	CreatedAt           time.Time          `json:"created_at" gorm:"column:created_at"`
	UpdatedAt           time.Time          `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

// HasCredential reports whether the user can authenticate by any method.
func (u *User) HasCredential() bool {
	return (u.PasswordHash != nil && *u.PasswordHash != "") || (u.GoogleID != nil && *u.GoogleID != "")
}

type Prompt struct {
	ID         string    `json:"id" gorm:"column:id;primaryKey"`
	UserID     string    `json:"user_id" gorm:"column:user_id"`
	Title      string    `json:"title" gorm:"column:title"`
	Input      string    `json:"input" gorm:"column:input"`
	Output     string    `json:"output" gorm:"column:output"`
	IsFavorite bool      `json:"is_favorite" gorm:"column:is_favorite"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Prompt) TableName() string { return "prompts" }

type Post struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey"`
	UserID    string    `json:"user_id" gorm:"column:user_id"`
	Title     string    `json:"title" gorm:"column:title"`
	Body      string    `json:"body" gorm:"column:body"`
	Prompt    string    `json:"prompt" gorm:"column:prompt"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	// Populated on read.
	AuthorName string    `json:"author_name" gorm:"-"`
	LikeCount  int64     `json:"like_count" gorm:"-"`
	LikedByMe  bool      `json:"liked_by_me" gorm:"-"`
	Comments   []Comment `json:"comments,omitempty" gorm:"-"`
}

func (Post) TableName() string { return "posts" }

type Comment struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey"`
	PostID    string    `json:"post_id" gorm:"column:post_id"`
	UserID    string    `json:"user_id" gorm:"column:user_id"`
	Body      string    `json:"body" gorm:"column:body"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Comment) TableName() string { return "comments" }

type Like struct {
	PostID    string    `gorm:"column:post_id;primaryKey"`
	UserID    string    `gorm:"column:user_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Like) TableName() string { return "likes" }
