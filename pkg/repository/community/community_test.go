package community

import (
	"context"
	"errors"
	"testing"

	"github.com/fgb-andu/reelprompt-api/pkg/repository/database/dbtest"
	"github.com/fgb-andu/reelprompt-api/pkg/repository/userprovider"
)

type fixture struct {
	store *Store
	alice string
	bob   string
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	users := userprovider.NewUserProvider(db)
	hash := "h"

	alice, err := users.CreateUser(context.Background(), userprovider.NewUser{Email: "alice@example.com", Name: "Alice", PasswordHash: &hash})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	bob, err := users.CreateUser(context.Background(), userprovider.NewUser{Email: "bob@example.com", Name: "Bob", PasswordHash: &hash})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return fixture{store: New(db), alice: alice.ID, bob: bob.ID}
}

func TestPostsCommentsAndLikes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	post, err := f.store.CreatePost(ctx, f.alice, "Neon rain", "my favourite", "a neon city in the rain")
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	if _, err := f.store.AddComment(ctx, f.bob, post.ID, "love it"); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	liked, count, err := f.store.ToggleLike(ctx, f.bob, post.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !liked || count != 1 {
		t.Fatalf("ToggleLike() = %v, %d; want true, 1", liked, count)
	}

	got, err := f.store.GetPost(ctx, f.bob, post.ID)
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if got.AuthorName != "Alice" || got.LikeCount != 1 || !got.LikedByMe || len(got.Comments) != 1 {
		t.Errorf("GetPost() = %+v", got)
	}

	list, err := f.store.ListPosts(ctx, "", 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListPosts() = %v, %v", list, err)
	}
	if list[0].LikedByMe {
		t.Error("guest should never see liked_by_me")
	}

	liked, count, _ = f.store.ToggleLike(ctx, f.bob, post.ID)
	if liked || count != 0 {
		t.Errorf("second ToggleLike() = %v, %d; want false, 0", liked, count)
	}
}

func TestDeletePost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	post, _ := f.store.CreatePost(ctx, f.alice, "title", "", "")
	_, _ = f.store.AddComment(ctx, f.bob, post.ID, "hi")
	_, _, _ = f.store.ToggleLike(ctx, f.bob, post.ID)

	if err := f.store.DeletePost(ctx, f.bob, post.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("DeletePost() by non-owner error = %v, want ErrNotOwner", err)
	}
	if err := f.store.DeletePost(ctx, f.alice, post.ID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if _, err := f.store.GetPost(ctx, "", post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("GetPost() after delete error = %v", err)
	}
	if err := f.store.DeletePost(ctx, f.alice, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("second DeletePost() error = %v, want ErrPostNotFound", err)
	}
}

func TestCommentOnMissingPost(t *testing.T) {
	f := setup(t)
	if _, err := f.store.AddComment(context.Background(), f.bob, "missing", "hi"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("AddComment() error = %v, want ErrPostNotFound", err)
	}
	if _, _, err := f.store.ToggleLike(context.Background(), f.bob, "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("ToggleLike() error = %v, want ErrPostNotFound", err)
	}
}
