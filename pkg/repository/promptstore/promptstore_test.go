package promptstore

import (
	"context"
	"errors"
	"testing"

	"github.com/fgb-andu/reelprompt-api/pkg/repository/database/dbtest"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
)

func setup(t *testing.T) (*Store, string, string) {
	t.Helper()
	db := dbtest.Open(t)
	users := userprovider.NewUserProvider(db)
	hash := "h"

	alice, err := users.CreateUser(context.Background(), userprovider.NewUser{Email: "alice@example.com", PasswordHash: &hash})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	bob, err := users.CreateUser(context.Background(), userprovider.NewUser{Email: "bob@example.com", PasswordHash: &hash})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return New(db), alice.ID, bob.ID
}

func TestPromptCRUD(t *testing.T) {
	store, alice, _ := setup(t)
	ctx := context.Background()

	created, err := store.Create(ctx, alice, "City", "a city", `{"prompt":"a city"}`)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	list, err := store.List(ctx, alice, 10, 0)
	if err != nil || len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("List() = %v, %v", list, err)
	}

	title := "Night city"
	fav := true
	updated, err := store.Update(ctx, alice, created.ID, Update{Title: &title, IsFavorite: &fav})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != title || !updated.IsFavorite {
		t.Errorf("Update() = %+v", updated)
	}

	if err := store.Delete(ctx, alice, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, alice, created.ID); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrPromptNotFound", err)
	}
}

func TestPromptsAreOwnerScoped(t *testing.T) {
	store, alice, bob := setup(t)
	ctx := context.Background()

	created, _ := store.Create(ctx, alice, "", "input", "output")

	if _, err := store.Get(ctx, bob, created.ID); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("Get() by other user error = %v, want ErrPromptNotFound", err)
	}
	if err := store.Delete(ctx, bob, created.ID); !errors.Is(err, ErrPromptNotFound) {
		t.Errorf("Delete() by other user error = %v, want ErrPromptNotFound", err)
	}
	list, _ := store.List(ctx, bob, 10, 0)
	if len(list) != 0 {
		t.Errorf("List() for other user = %d prompts, want 0", len(list))
	}
}
