// Package ratelimit meters requests per identity over a sliding window.
//
// With the in-memory kvstore the counts live in this process only, so each
// server instance enforces its own ceiling. Use the Redis store when several
// instances share traffic.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/fgb-andu/reelprompt-api/pkg/kvstore"
)

const (
	DefaultLimit  = 60
	DefaultWindow = time.Hour
	keyPrefix     = "ratelimit:"
)

type Config struct {
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

type Limiter struct {
	store  kvstore.Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(store kvstore.Store, c Config) *Limiter {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Limiter{store: store, limit: c.Limit, window: c.Window, now: c.Now}
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
	// RetryAfter is zero for admitted requests and at least one second
	// otherwise, measured on the limiter's clock.
	RetryAfter time.Duration
}

// Allow records a request for identity when it is under the ceiling.
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	adm, err := l.store.Admit(ctx, keyPrefix+identity, now, l.window, l.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	d := Decision{
		Allowed:   adm.Allowed,
		Limit:     l.limit,
		Remaining: l.limit - adm.Count,
		ResetAt:   now.Add(l.window),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !adm.Oldest.IsZero() {
		d.ResetAt = adm.Oldest.Add(l.window)
	}
	if !d.Allowed {
		d.RetryAfter = d.ResetAt.Sub(now).Truncate(time.Second) + time.Second
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d, nil
}

func (l *Limiter) Limit() int { return l.limit }
