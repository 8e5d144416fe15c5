// Package scheduler wraps robfig/cron for the server's background
// maintenance jobs (artifact retention purge).
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron loop and tracks the next purge run.
type Scheduler struct {
	mu      sync.RWMutex
	c       *cron.Cron
	purgeID cron.EntryID
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{c: cron.New()}
}

// SetPurgeJob registers the artifact purge on the given cron expression.
func (s *Scheduler) SetPurgeJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.purgeID != 0 {
		s.c.Remove(s.purgeID)
	}
	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s.purgeID = id
	slog.Info("scheduler: purge job set", "cron", expr)
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop gracefully.
func (s *Scheduler) Stop() {
	s.c.Stop()
}

// NextPurgeAt returns the next scheduled purge time, or nil if unset.
func (s *Scheduler) NextPurgeAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.purgeID == 0 {
		return nil
	}
	entry := s.c.Entry(s.purgeID)
	if entry.ID == 0 {
		return nil
	}
	t := entry.Next
	return &t
}
