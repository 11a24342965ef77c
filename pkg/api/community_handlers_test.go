package api

import (
	"net/http"
	"testing"

	"github.com/fgb-andu/reelprompt-api/pkg/domain"
)

func TestCommunityFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")

	if rec := s.do(t, http.MethodPost, "/api/posts", CreatePostRequest{Title: "x"}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("guest create status = %d, want 401", rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/posts", CreatePostRequest{Title: "Neon rain", Prompt: "a neon city in the rain"}, alice.Token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	var created struct {
		Post domain.Post `json:"post"`
	}
	decode(t, rec, &created)
	path := "/api/posts/" + created.Post.ID

	if rec := s.do(t, http.MethodPost, path+"/comments", CommentRequest{Body: "love it"}, bob.Token); rec.Code != http.StatusCreated {
		t.Errorf("comment status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodPost, path+"/like", nil, bob.Token)
	var like LikeResponse
	decode(t, rec, &like)
	if !like.Liked || like.LikeCount != 1 {
		t.Errorf("like = %+v, want liked with 1", like)
	}

	rec = s.do(t, http.MethodGet, path, nil, bob.Token)
	var got struct {
		Post domain.Post `json:"post"`
	}
	decode(t, rec, &got)
	if !got.Post.LikedByMe || len(got.Post.Comments) != 1 {
		t.Errorf("post as bob = %+v", got.Post)
	}

	// Guests can read but never see their own like.
	rec = s.do(t, http.MethodGet, path, nil, "")
	decode(t, rec, &got)
	if rec.Code != http.StatusOK || got.Post.LikedByMe {
		t.Errorf("guest read = %d, %+v", rec.Code, got.Post)
	}

	if rec := s.do(t, http.MethodDelete, path, nil, bob.Token); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner delete status = %d, want 403", rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, path, nil, alice.Token); rec.Code != http.StatusOK {
		t.Errorf("owner delete status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, path+"/like", nil, bob.Token); rec.Code != http.StatusNotFound {
		t.Errorf("like deleted post status = %d, want 404", rec.Code)
	}
}
