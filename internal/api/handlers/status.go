package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"veriframe/internal/scheduler"
	"veriframe/internal/verify"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	DB      *sql.DB
	Manager *verify.Manager
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version     string            `json:"version"`
	ActiveRun   *activeRunInfo    `json:"active_run"`
	LastRun     *completedRunInfo `json:"last_run"`
	NextPurgeAt *time.Time        `json:"next_purge_at"`
}

type activeRunInfo struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	StartedAt       time.Time `json:"started_at"`
	ProcessedFrames int64     `json:"processed_frames"`
	TotalFrames     int64     `json:"total_frames"`
}

type completedRunInfo struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Matched    bool      `json:"matched"`
	Hash       string    `json:"hash,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Version: h.Version}

	if run := h.Manager.Active(); run != nil {
		processed, total := run.Progress.Snapshot()
		resp.ActiveRun = &activeRunInfo{
			ID:              run.ID,
			Kind:            string(run.Kind),
			StartedAt:       run.StartedAt,
			ProcessedFrames: processed,
			TotalFrames:     total,
		}
	}

	resp.LastRun = h.lastRun()
	if h.Sched != nil {
		resp.NextPurgeAt = h.Sched.NextPurgeAt()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) lastRun() *completedRunInfo {
	if h.DB == nil {
		return nil
	}
	row := h.DB.QueryRow(`
		SELECT id, kind, status, matched, fingerprint_hash, COALESCE(finished_at, 0)
		FROM verification_history
		WHERE status != 'running'
		ORDER BY id DESC
		LIMIT 1`)

	var (
		info       completedRunInfo
		matched    int
		finishedAt int64
	)
	err := row.Scan(&info.ID, &info.Kind, &info.Status, &matched, &info.Hash, &finishedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Error("status: query last run", "error", err)
		}
		return nil
	}
	info.Matched = matched != 0
	info.FinishedAt = time.Unix(finishedAt, 0).UTC()
	return &info
}
