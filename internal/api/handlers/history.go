package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// HistoryHandler handles GET /api/verifications and
// GET /api/verifications/{id}.
type HistoryHandler struct {
	DB *sql.DB
}

type verificationInfo struct {
	ID              int64          `json:"id"`
	RunID           string         `json:"run_id"`
	Kind            string         `json:"kind"`
	FileName        string         `json:"file_name,omitempty"`
	MediaType       string         `json:"media_type,omitempty"`
	Hash            string         `json:"hash,omitempty"`
	Wallet          string         `json:"wallet,omitempty"`
	TxHash          string         `json:"tx_hash,omitempty"`
	Matched         bool           `json:"matched"`
	Message         string         `json:"message"`
	TotalFrames     int64          `json:"total_frames"`
	ProcessedFrames int64          `json:"processed_frames"`
	Status          string         `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	Artifacts       []artifactInfo `json:"artifacts,omitempty"`
}

type artifactInfo struct {
	FrameIndex int    `json:"frame_index"`
	URL        string `json:"url"`
}

// List returns verification history, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := h.DB.QueryRow(`SELECT COUNT(*) FROM verification_history`).Scan(&total); err != nil {
		slog.Error("history: count", "error", err)
		writeError(w, http.StatusInternalServerError, "db_error", "query failed")
		return
	}

	rows, err := h.DB.Query(`
		SELECT id, run_id, kind, file_name, media_type, fingerprint_hash,
		       wallet, tx_hash, matched, message,
		       total_frames, processed_frames, status,
		       started_at, COALESCE(finished_at, 0)
		FROM verification_history
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		slog.Error("history: list", "error", err)
		writeError(w, http.StatusInternalServerError, "db_error", "query failed")
		return
	}
	defer rows.Close()

	items := []verificationInfo{}
	for rows.Next() {
		info, err := scanVerification(rows)
		if err != nil {
			slog.Error("history: scan row", "error", err)
			continue
		}
		items = append(items, info)
	}

	writeJSON(w, http.StatusOK, ListResponse[verificationInfo]{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get returns one verification by ID, including comparison artifacts.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	row := h.DB.QueryRow(`
		SELECT id, run_id, kind, file_name, media_type, fingerprint_hash,
		       wallet, tx_hash, matched, message,
		       total_frames, processed_frames, status,
		       started_at, COALESCE(finished_at, 0)
		FROM verification_history
		WHERE id = ?`, id)

	info, err := scanVerification(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found", "verification not found")
		return
	}
	if err != nil {
		slog.Error("history: get", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "db_error", "query failed")
		return
	}

	info.Artifacts = h.artifacts(id)
	writeJSON(w, http.StatusOK, info)
}

func (h *HistoryHandler) artifacts(historyID int64) []artifactInfo {
	rows, err := h.DB.Query(`
		SELECT frame_index, path
		FROM comparison_artifacts
		WHERE history_id = ?
		ORDER BY frame_index`, historyID)
	if err != nil {
		slog.Error("history: artifacts", "history_id", historyID, "error", err)
		return nil
	}
	defer rows.Close()

	var arts []artifactInfo
	for rows.Next() {
		var a artifactInfo
		var path string
		if err := rows.Scan(&a.FrameIndex, &path); err != nil {
			continue
		}
		a.URL = "/comparisons/" + path
		arts = append(arts, a)
	}
	return arts
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVerification(row rowScanner) (verificationInfo, error) {
	var (
		info       verificationInfo
		matched    int
		startedAt  int64
		finishedAt int64
	)
	err := row.Scan(
		&info.ID, &info.RunID, &info.Kind, &info.FileName, &info.MediaType,
		&info.Hash, &info.Wallet, &info.TxHash, &matched, &info.Message,
		&info.TotalFrames, &info.ProcessedFrames, &info.Status,
		&startedAt, &finishedAt)
	if err != nil {
		return info, err
	}
	info.Matched = matched != 0
	info.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt != 0 {
		t := time.Unix(finishedAt, 0).UTC()
		info.FinishedAt = &t
	}
	return info, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
