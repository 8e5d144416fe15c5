package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"veriframe/internal/artifacts"
	"veriframe/internal/verify"
)

// maxUploadBytes bounds the multipart form memory; larger bodies spill to
// temp files.
const maxUploadBytes = 64 << 20

// VerifyHandler handles POST /api/verify and POST /api/search.
type VerifyHandler struct {
	Manager *verify.Manager
	Runner  *verify.Runner
	Store   *artifacts.Manager
}

// Verify fingerprints the upload and scans the declared wallet for its
// hash. When the request carries both a wallet and a precomputed hash, the
// upload is skipped and the hash is searched directly.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	wallet := r.FormValue("wallet")
	hash := r.FormValue("hash")

	run, err := h.Manager.Begin(verify.KindWalletVerify)
	if errors.Is(err, verify.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, "busy", err.Error())
		return
	}
	defer h.Manager.Finish(run)

	// Direct hash verification path: no media processing at all.
	if wallet != "" && hash != "" {
		writeJSON(w, http.StatusOK, h.Runner.VerifyHash(r.Context(), run, wallet, hash))
		return
	}

	path, fileName, ok := h.saveUpload(w, r, "file")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Runner.Verify(r.Context(), run, path, fileName, wallet))
}

// Search fingerprints the upload and scans every ledger label bucket.
func (h *VerifyHandler) Search(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}

	run, err := h.Manager.Begin(verify.KindLedgerSearch)
	if errors.Is(err, verify.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, "busy", err.Error())
		return
	}
	defer h.Manager.Finish(run)

	path, fileName, ok := h.saveUpload(w, r, "file")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Runner.Search(r.Context(), run, path, fileName))
}

// saveUpload persists the named multipart file and returns its path.
// Writes the error response itself when the field is missing or saving
// fails.
func (h *VerifyHandler) saveUpload(w http.ResponseWriter, r *http.Request, field string) (path, fileName string, ok bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "no file uploaded")
		return "", "", false
	}
	defer file.Close()

	path, err = h.Store.SaveUpload(header.Filename, file)
	if err != nil {
		slog.Error("save upload", "name", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "could not save upload")
		return "", "", false
	}
	return path, header.Filename, true
}
