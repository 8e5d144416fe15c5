package verify

import "sync/atomic"

// Progress holds the live frame counters for one run. Each run owns its
// own Progress, so a finished run's counters are never clobbered by the
// next one. Fields are atomic so the pipeline goroutine can write while
// the progress stream reads without locks.
type Progress struct {
	ProcessedFrames atomic.Int64
	TotalFrames     atomic.Int64
}

// SetTotal records the source's declared frame count. Set once at run start.
func (p *Progress) SetTotal(n int64) { p.TotalFrames.Store(n) }

// Advance increments the processed-frame counter by one.
func (p *Progress) Advance() { p.ProcessedFrames.Add(1) }

// Snapshot returns the current (processed, total) pair.
func (p *Progress) Snapshot() (processed, total int64) {
	return p.ProcessedFrames.Load(), p.TotalFrames.Load()
}
