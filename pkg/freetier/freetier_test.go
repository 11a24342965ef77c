package freetier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMeter(t *testing.T, clock *fakeClock) (*Meter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "freetier.json")
	return New(Config{Path: path, Now: clock.Now}), path
}

func TestSixthAttemptIsBlocked(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	meter, _ := newMeter(t, clock)

	for i := 1; i <= DefaultAllowance; i++ {
		st, err := meter.Consume()
		if err != nil {
			t.Fatalf("Consume() #%d error = %v", i, err)
		}
		if st.Remaining != DefaultAllowance-i {
			t.Errorf("Consume() #%d Remaining = %d, want %d", i, st.Remaining, DefaultAllowance-i)
		}
		clock.Advance(time.Minute)
	}

	st, err := meter.Consume()
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("sixth Consume() error = %v, want ErrExhausted", err)
	}
	if want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC); !st.ResetsAt.Equal(want) {
		t.Errorf("ResetsAt = %v, want %v", st.ResetsAt, want)
	}
}

func TestAllowanceRecharges(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	meter, _ := newMeter(t, clock)
	for i := 0; i < DefaultAllowance; i++ {
		_, _ = meter.Consume()
	}

	clock.Advance(DefaultRecharge)
	st, err := meter.Status()
	if err != nil || st.Remaining != DefaultAllowance || !st.ResetsAt.IsZero() {
		t.Fatalf("Status() after recharge = %+v, %v", st, err)
	}
	if _, err := meter.Consume(); err != nil {
		t.Errorf("Consume() after recharge error = %v", err)
	}
}

func TestStatePersistsAcrossMeters(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	meter, path := newMeter(t, clock)
	_, _ = meter.Consume()
	_, _ = meter.Consume()

	reopened := New(Config{Path: path, Now: clock.Now})
	st, _ := reopened.Status()
	if st.Remaining != DefaultAllowance-2 {
		t.Errorf("Remaining = %d, want %d", st.Remaining, DefaultAllowance-2)
	}

	if err := reopened.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	st, _ = meter.Status()
	if st.Remaining != DefaultAllowance {
		t.Errorf("Remaining after Reset() = %d", st.Remaining)
	}
}

func TestCorruptStateStartsFresh(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	meter, path := newMeter(t, clock)
	_ = os.MkdirAll(filepath.Dir(path), 0o700)
	_ = os.WriteFile(path, []byte("{not json"), 0o600)

	st, err := meter.Status()
	if err != nil || st.Remaining != DefaultAllowance {
		t.Fatalf("Status() = %+v, %v", st, err)
	}
}
