// Package freetier is the client-side allowance for guests and free users:
// a few generations, recharged a fixed time after the first one. The count
// lives in a local file, so it shapes the experience but enforces nothing.
package freetier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	DefaultAllowance = 5
	DefaultRecharge  = 24 * time.Hour
)

var ErrExhausted = errors.New("free allowance used up")

type state struct {
	Used        int       `json:"used"`
	WindowStart time.Time `json:"window_start,omitempty"`
}

type Status struct {
	Allowance int
	Remaining int
	// ResetsAt is zero until the first use in a window.
	ResetsAt time.Time
}

type Config struct {
	Path      string
	Allowance int
	Recharge  time.Duration
	Now       func() time.Time
}

type Meter struct {
	mu        sync.Mutex
	path      string
	allowance int
	recharge  time.Duration
	now       func() time.Time
}

func New(c Config) *Meter {
	if c.Allowance <= 0 {
		c.Allowance = DefaultAllowance
	}
	if c.Recharge <= 0 {
		c.Recharge = DefaultRecharge
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Meter{path: c.Path, allowance: c.Allowance, recharge: c.Recharge, now: c.Now}
}

// Status reports the allowance without using it.
func (m *Meter) Status() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load()
	if err != nil {
		return Status{}, err
	}
	return m.status(s), nil
}

// Consume uses one generation. It returns ErrExhausted, along with the
// current status, when none are left.
func (m *Meter) Consume() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load()
	if err != nil {
		return Status{}, err
	}
	if s.Used >= m.allowance {
		return m.status(s), ErrExhausted
	}

	if s.WindowStart.IsZero() {
		s.WindowStart = m.now()
	}
	s.Used++
	if err := m.save(s); err != nil {
		return Status{}, err
	}
	return m.status(s), nil
}

func (m *Meter) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(state{})
}

func (m *Meter) status(s state) Status {
	st := Status{Allowance: m.allowance, Remaining: m.allowance - s.Used}
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	if !s.WindowStart.IsZero() {
		st.ResetsAt = s.WindowStart.Add(m.recharge)
	}
	return st
}

// load reads the state file and applies a recharge that is due. A missing
// or unreadable file counts as a fresh allowance.
func (m *Meter) load() (state, error) {
	var s state
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read free tier state: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return state{}, nil
	}

	if !s.WindowStart.IsZero() && !m.now().Before(s.WindowStart.Add(m.recharge)) {
		s = state{}
	}
	return s, nil
}

func (m *Meter) save(s state) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write free tier state: %w", err)
	}
	return os.Rename(tmp, m.path)
}
