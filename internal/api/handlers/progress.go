package handlers

import (
	"fmt"
	"net/http"
	"time"

	"veriframe/internal/verify"
)

// ProgressHandler streams frame-processing progress as server-sent events.
type ProgressHandler struct {
	Manager *verify.Manager
	// Interval between events; defaults to one second.
	Interval time.Duration
}

// ServeHTTP emits `data:<processed>|<total>` at a fixed cadence until the
// client disconnects. Before the first run of the process both counters
// read zero.
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	interval := h.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			var processed, total int64
			if run := h.Manager.Current(); run != nil {
				processed, total = run.Progress.Snapshot()
			}
			fmt.Fprintf(w, "data:%d|%d\n\n", processed, total)
			flusher.Flush()
		}
	}
}
