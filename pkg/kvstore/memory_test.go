package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemory_GetSet(t *testing.T) {
	clock := newClock()
	store := NewMemory(MemoryConfig{Now: clock.Now})
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}

	if err := store.Set(ctx, "k", []byte("v"), 5*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get() = %q, %v; want v", got, err)
	}

	clock.Advance(5 * time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after ttl error = %v, want ErrNotFound", err)
	}

	stats := store.Stats()
	if stats.Hits != 1 || stats.Misses != 2 || stats.Sets != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestMemory_SetWithoutTTL(t *testing.T) {
	clock := newClock()
	store := NewMemory(MemoryConfig{Now: clock.Now})
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), 0)
	clock.Advance(365 * 24 * time.Hour)

	if _, err := store.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() error = %v, want value without expiry", err)
	}
}

func TestMemory_Eviction(t *testing.T) {
	store := NewMemory(MemoryConfig{MaxSize: 2})
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)
	_ = store.Set(ctx, "c", []byte("3"), 0)

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if store.Stats().Evictions != 1 {
		t.Fatalf("Evictions = %d, want 1", store.Stats().Evictions)
	}
	if _, err := store.Get(ctx, "c"); err != nil {
		t.Fatalf("newest key should survive eviction: %v", err)
	}
}

func TestMemory_Admit(t *testing.T) {
	clock := newClock()
	store := NewMemory(MemoryConfig{Now: clock.Now})
	ctx := context.Background()
	first := clock.Now()

	for i := 1; i <= 3; i++ {
		adm, err := store.Admit(ctx, "user", clock.Now(), time.Hour, 3)
		if err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
		if !adm.Allowed || adm.Count != i {
			t.Fatalf("hit %d: Admit() = %+v", i, adm)
		}
		clock.Advance(time.Minute)
	}

	adm, _ := store.Admit(ctx, "user", clock.Now(), time.Hour, 3)
	if adm.Allowed {
		t.Fatal("4th hit inside the window should be rejected")
	}
	if adm.Count != 3 || !adm.Oldest.Equal(first) {
		t.Fatalf("rejected Admit() = %+v", adm)
	}

	// Another identity is independent.
	if adm, _ := store.Admit(ctx, "other", clock.Now(), time.Hour, 3); !adm.Allowed {
		t.Fatal("other identity should be admitted")
	}

	clock.now = first.Add(time.Hour + time.Second)
	adm, _ = store.Admit(ctx, "user", clock.Now(), time.Hour, 3)
	if !adm.Allowed {
		t.Fatalf("hit after the first timestamp left the window should be admitted: %+v", adm)
	}
}

func TestMemory_AdmitSweepsStaleWindows(t *testing.T) {
	clock := newClock()
	store := NewMemory(MemoryConfig{MaxSize: 3, Now: clock.Now})
	ctx := context.Background()

	for _, ip := range []string{"ip:1", "ip:2", "ip:3"} {
		if _, err := store.Admit(ctx, ip, clock.Now(), time.Hour, 60); err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
	}
	if got := store.Windows(); got != 3 {
		t.Fatalf("Windows() = %d, want 3", got)
	}

	clock.Advance(time.Hour)
	if _, err := store.Admit(ctx, "ip:4", clock.Now(), time.Hour, 60); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if got := store.Windows(); got != 1 {
		t.Errorf("Windows() = %d after the old windows expired, want 1", got)
	}
}
