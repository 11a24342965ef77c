package userprovider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/database/dbtest"
)

func strPtr(s string) *string { return &s }

func newProvider(t *testing.T) *UserProvider {
	t.Helper()
	return NewUserProvider(dbtest.Open(t))
}

func TestCreateUser(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	user, err := p.CreateUser(ctx, NewUser{Email: " Alice@Example.com ", Name: "Alice", PasswordHash: strPtr("hash")})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID == "" {
		t.Error("CreateUser() should assign an id")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", user.Email)
	}
	if user.SubscriptionStatus != domain.SubscriptionFree {
		t.Errorf("SubscriptionStatus = %q, want free", user.SubscriptionStatus)
	}

	got, err := p.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != user.ID || got.PasswordHash == nil || *got.PasswordHash != "hash" {
		t.Errorf("GetUserByEmail() = %+v", got)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	first, err := p.CreateUser(ctx, NewUser{Email: "bob@example.com", PasswordHash: strPtr("first")})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	_, err = p.CreateUser(ctx, NewUser{Email: "bob@example.com", PasswordHash: strPtr("second")})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("CreateUser() error = %v, want ErrUserExists", err)
	}

	got, _ := p.GetUser(ctx, first.ID)
	if *got.PasswordHash != "first" {
		t.Errorf("first account password hash changed to %q", *got.PasswordHash)
	}
}

func TestCreateUser_RequiresCredential(t *testing.T) {
	p := newProvider(t)
	if _, err := p.CreateUser(context.Background(), NewUser{Email: "x@example.com"}); err == nil {
		t.Fatal("CreateUser() without credential should fail")
	}
}

func TestGetUser_NotFound(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	lookups := map[string]func() (*domain.User, error){
		"id":       func() (*domain.User, error) { return p.GetUser(ctx, "nope") },
		"email":    func() (*domain.User, error) { return p.GetUserByEmail(ctx, "nope@example.com") },
		"google":   func() (*domain.User, error) { return p.GetUserByGoogleID(ctx, "g-1") },
		"customer": func() (*domain.User, error) { return p.GetUserByStripeCustomerID(ctx, "") },
	}
	for name, lookup := range lookups {
		if _, err := lookup(); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("%s lookup error = %v, want ErrUserNotFound", name, err)
		}
	}
}

func TestStripeCustomerAndStatus(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	user, _ := p.CreateUser(ctx, NewUser{Email: "carol@example.com", GoogleID: strPtr("g-carol")})

	if err := p.SetStripeCustomerID(ctx, user.ID, "cus_123"); err != nil {
		t.Fatalf("SetStripeCustomerID() error = %v", err)
	}
	if err := p.SetSubscriptionStatus(ctx, user.ID, domain.SubscriptionPro); err != nil {
		t.Fatalf("SetSubscriptionStatus() error = %v", err)
	}
	// Setting the same status twice is harmless.
	if err := p.SetSubscriptionStatus(ctx, user.ID, domain.SubscriptionPro); err != nil {
		t.Fatalf("repeated SetSubscriptionStatus() error = %v", err)
	}

	got, err := p.GetUserByStripeCustomerID(ctx, "cus_123")
	if err != nil {
		t.Fatalf("GetUserByStripeCustomerID() error = %v", err)
	}
	if got.ID != user.ID || got.SubscriptionStatus != domain.SubscriptionPro {
		t.Errorf("got %+v", got)
	}

	if err := p.SetSubscriptionStatus(ctx, "missing", domain.SubscriptionFree); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("SetSubscriptionStatus() on missing user error = %v", err)
	}
}

func TestResetTokenLifecycle(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	user, _ := p.CreateUser(ctx, NewUser{Email: "dan@example.com", PasswordHash: strPtr("old")})
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	if err := p.SetResetToken(ctx, user.ID, "tokenhash", expires); err != nil {
		t.Fatalf("SetResetToken() error = %v", err)
	}
	got, err := p.GetUserByResetTokenHash(ctx, "tokenhash")
	if err != nil {
		t.Fatalf("GetUserByResetTokenHash() error = %v", err)
	}
	if got.ResetTokenExpiresAt == nil || !got.ResetTokenExpiresAt.Equal(expires) {
		t.Errorf("ResetTokenExpiresAt = %v, want %v", got.ResetTokenExpiresAt, expires)
	}

	if err := p.SetPassword(ctx, user.ID, "new"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if _, err := p.GetUserByResetTokenHash(ctx, "tokenhash"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("reset token should be cleared, got err = %v", err)
	}
	got, _ = p.GetUser(ctx, user.ID)
	if *got.PasswordHash != "new" {
		t.Errorf("PasswordHash = %q, want new", *got.PasswordHash)
	}
}

func TestListUsers(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := p.CreateUser(ctx, NewUser{Email: email, PasswordHash: strPtr("h")}); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
	}

	users, total, err := p.ListUsers(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if total != 3 || len(users) != 2 {
		t.Errorf("ListUsers() = %d users, total %d; want 2, 3", len(users), total)
	}
}
