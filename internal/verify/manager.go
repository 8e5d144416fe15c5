package verify

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned when a run is started while one is active.
var ErrAlreadyRunning = errors.New("a verification is already in progress")

// Kind identifies what a run is doing.
type Kind string

const (
	KindWalletVerify Kind = "wallet_verify"
	KindLedgerSearch Kind = "ledger_search"
	KindCompare      Kind = "compare"
)

// Run is one live or recently finished processing run.
type Run struct {
	ID        string
	Kind      Kind
	StartedAt time.Time
	Progress  *Progress
}

// Manager enforces the single-active-run invariant: frame decoding and
// ledger scans are heavy sequential work, so concurrent uploads queue at
// the HTTP boundary with a 409 instead of corrupting each other's
// counters. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	active *Run
	last   *Run
}

// NewManager creates an idle Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Begin claims the pipeline for a new run, or returns ErrAlreadyRunning.
func (m *Manager) Begin(kind Kind) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now(),
		Progress:  &Progress{},
	}
	m.active = run
	return run, nil
}

// Finish releases the pipeline. The finished run stays observable through
// Current so the progress stream can report its final counters.
func (m *Manager) Finish(run *Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == run {
		m.active = nil
		m.last = run
	}
}

// Active returns the running run, or nil when idle.
func (m *Manager) Active() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Current returns the running run if any, otherwise the most recently
// finished one. Nil only before the first run of the process.
func (m *Manager) Current() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return m.active
	}
	return m.last
}
