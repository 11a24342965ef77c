package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type user struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	SubscriptionStatus string `json:"subscription_status"`
}

// paid mirrors domain.SubscriptionStatus.Paid without importing server code.
func (u *user) paid() bool {
	return u.SubscriptionStatus == "pro" || u.SubscriptionStatus == "lifetime"
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *client) login(ctx context.Context, email, password string) (string, *user, error) {
	var res struct {
		Token string `json:"token"`
		User  user   `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &res, nil); err != nil {
		return "", nil, err
	}
	return res.Token, &res.User, nil
}

func (c *client) me(ctx context.Context) (*user, error) {
	var res struct {
		User user `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &res, nil); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// generate returns the raw prompt object and where the server got it from.
func (c *client) generate(ctx context.Context, input string) (json.RawMessage, string, error) {
	var res struct {
		Prompt json.RawMessage `json:"prompt"`
	}
	var header http.Header
	if err := c.do(ctx, http.MethodPost, "/api/generate-prompt", map[string]string{"input": input}, &res, &header); err != nil {
		return nil, "", err
	}
	return res.Prompt, header.Get("X-Prompt-Source"), nil
}

func (c *client) do(ctx context.Context, method, path string, in, out interface{}, header *http.Header) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var env struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return &apiError{Status: resp.StatusCode, Message: env.Message}
	}
	if header != nil {
		*header = resp.Header
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
