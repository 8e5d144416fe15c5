package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"veriframe/internal/artifacts"
	"veriframe/internal/verify"
)

// CompareHandler handles POST /api/compare.
type CompareHandler struct {
	Manager *verify.Manager
	Runner  *verify.Runner
	Store   *artifacts.Manager
}

// Compare runs the frame-diff analyzer over two uploaded videos and
// returns the differing frame indices plus composite image URLs.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}

	run, err := h.Manager.Begin(verify.KindCompare)
	if errors.Is(err, verify.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, "busy", err.Error())
		return
	}
	defer h.Manager.Finish(run)

	path1, ok := h.saveVideo(w, r, "video1")
	if !ok {
		return
	}
	path2, ok := h.saveVideo(w, r, "video2")
	if !ok {
		return
	}

	verdict := h.Runner.Compare(r.Context(), run, path1, path2)

	// Composite paths come back relative to the comparisons root; expose
	// them as URLs under the static mount.
	urls := make([]string, len(verdict.ComparisonImages))
	for i, rel := range verdict.ComparisonImages {
		urls[i] = "/comparisons/" + rel
	}
	verdict.ComparisonImages = urls

	writeJSON(w, http.StatusOK, verdict)
}

func (h *CompareHandler) saveVideo(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "both videos must be uploaded")
		return "", false
	}
	defer file.Close()

	path, err := h.Store.SaveUpload(header.Filename, file)
	if err != nil {
		slog.Error("save upload", "name", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "could not save upload")
		return "", false
	}
	return path, true
}
