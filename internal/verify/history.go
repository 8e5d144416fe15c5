package verify

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// insertRunRecord creates the verification_history row at run start so the
// run is visible in the history API while still executing.
func insertRunRecord(db *sql.DB, run *Run, fileName, mediaType string) (int64, error) {
	now := run.StartedAt.Unix()
	res, err := db.Exec(`
		INSERT INTO verification_history
			(run_id, kind, file_name, media_type, status, started_at, created_at)
		VALUES (?, ?, ?, ?, 'running', ?, ?)`,
		run.ID, string(run.Kind), fileName, mediaType, now, now)
	if err != nil {
		return 0, fmt.Errorf("create verification record: %w", err)
	}
	return res.LastInsertId()
}

// finaliseRunRecord writes the outcome and final counters.
func finaliseRunRecord(db *sql.DB, historyID int64, status string, v *Verdict) {
	_, err := db.Exec(`
		UPDATE verification_history
		SET status           = ?,
		    fingerprint_hash = ?,
		    wallet           = ?,
		    tx_hash          = ?,
		    matched          = ?,
		    message          = ?,
		    total_frames     = ?,
		    processed_frames = ?,
		    finished_at      = ?
		WHERE id = ?`,
		status, v.Hash, v.Wallet, v.TxHash, boolToInt(v.Matched), v.Message,
		v.TotalFrames, v.ProcessedFrames, time.Now().Unix(), historyID)
	if err != nil {
		slog.Error("finalise verification record", "id", historyID, "error", err)
	}
}

// insertArtifacts records the persisted composite paths of a comparison.
func insertArtifacts(db *sql.DB, historyID int64, frames []int, paths []string) {
	now := time.Now().Unix()
	for i, frame := range frames {
		_, err := db.Exec(`
			INSERT INTO comparison_artifacts (history_id, frame_index, path, created_at)
			VALUES (?, ?, ?, ?)`,
			historyID, frame, paths[i], now)
		if err != nil {
			slog.Error("insert comparison artifact", "history_id", historyID, "frame", frame, "error", err)
		}
	}
}

// MarkStaleRunsFailed marks any history rows still in 'running' state as
// failed. Called once at startup in case a previous process crashed
// mid-run.
func MarkStaleRunsFailed(db *sql.DB) error {
	res, err := db.Exec(`
		UPDATE verification_history
		SET status = 'failed', finished_at = ?
		WHERE status = 'running'`,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark stale runs failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale runs as failed", "count", n)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
