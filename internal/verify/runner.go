// Package verify orchestrates the verification pipelines: fingerprint an
// upload, search the ledger for its hash, and localize differences between
// two videos. One run is active at a time; every run terminates in a
// structured verdict, never a raw fault.
package verify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"veriframe/internal/artifacts"
	"veriframe/internal/diff"
	"veriframe/internal/fingerprint"
	"veriframe/internal/ledger"
	"veriframe/internal/media"
	"veriframe/internal/video"
)

// Verdict messages. The wording is part of the external contract: clients
// key their UI state off these strings.
const (
	MsgWalletFound    = "Transaction found with this hash within the declared wallet. Frame by frame analysis has confirmed authenticity"
	MsgWalletNotFound = "No transaction found with this hash within the declared wallet: Possible Tampering."
	MsgLedgerFound    = "Transaction found with this hash. Frame by frame analysis has confirmed authenticity"
	MsgLedgerNotFound = "No transaction found with this hash: Possible Tampering."

	msgUnsupported   = "Unsupported file type."
	msgProcessFailed = "Failed to process file."
	msgDecodeFailed  = "Failed to process file: unreadable media."
	msgNoWallet      = "No wallet address declared and no fallback configured."
)

// Verdict is the terminal response of a fingerprint verification run.
type Verdict struct {
	Message         string             `json:"message"`
	Hash            string             `json:"hash,omitempty"`
	Wallet          string             `json:"wallet,omitempty"`
	TxHash          string             `json:"tx_hash,omitempty"`
	Matched         bool               `json:"matched"`
	TotalFrames     int64              `json:"total_frames"`
	ProcessedFrames int64              `json:"processed_frames"`
	Capture         *media.CaptureMeta `json:"capture,omitempty"`
}

// CompareVerdict is the terminal response of a video comparison run.
type CompareVerdict struct {
	Message          string   `json:"message"`
	DifferingFrames  []int    `json:"differing_frames"`
	ComparisonImages []string `json:"comparison_images"`
	Truncated        bool     `json:"truncated"`
	TotalFrames      int64    `json:"total_frames"`
	ProcessedFrames  int64    `json:"processed_frames"`
}

// Runner executes verification and comparison pipelines.
type Runner struct {
	db             *sql.DB
	engine         *ledger.Engine
	params         fingerprint.Params
	diffOpts       diff.Options
	store          *artifacts.Manager
	fallbackWallet string
}

// NewRunner creates a Runner.
func NewRunner(db *sql.DB, engine *ledger.Engine, params fingerprint.Params, diffOpts diff.Options, store *artifacts.Manager, fallbackWallet string) *Runner {
	return &Runner{
		db:             db,
		engine:         engine,
		params:         params,
		diffOpts:       diffOpts,
		store:          store,
		fallbackWallet: fallbackWallet,
	}
}

// Verify fingerprints the uploaded file, hashes the fingerprint, and scans
// the declared wallet (or the configured fallback) for the hash. Every
// outcome — including pipeline failure — is reported as a Verdict.
func (r *Runner) Verify(ctx context.Context, run *Run, path, fileName, wallet string) *Verdict {
	historyID, err := insertRunRecord(r.db, run, fileName, string(media.Detect(path)))
	if err != nil {
		slog.Error("verify: create history record", "error", err)
	}

	if wallet == "" {
		wallet = r.fallbackWallet
	}
	if wallet == "" {
		v := &Verdict{Message: msgNoWallet}
		finaliseRunRecord(r.db, historyID, "failed", v)
		return v
	}

	hash, err := r.fingerprintFile(ctx, run, path)
	if err != nil {
		v := failureVerdict(err)
		v.Wallet = wallet
		fillCounters(v, run)
		finaliseRunRecord(r.db, historyID, "failed", v)
		return v
	}

	v := r.walletVerdict(ctx, wallet, hash)
	if media.Detect(path) == media.FileTypeImage {
		if meta := media.ExtractCaptureMeta(path); meta != (media.CaptureMeta{}) {
			v.Capture = &meta
		}
	}
	fillCounters(v, run)
	finaliseRunRecord(r.db, historyID, "completed", v)
	return v
}

// VerifyHash skips fingerprinting entirely and scans the declared wallet
// for a caller-supplied precomputed hash.
func (r *Runner) VerifyHash(ctx context.Context, run *Run, wallet, hash string) *Verdict {
	historyID, err := insertRunRecord(r.db, run, "", "")
	if err != nil {
		slog.Error("verify: create history record", "error", err)
	}

	v := r.walletVerdict(ctx, wallet, hash)
	fillCounters(v, run)
	finaliseRunRecord(r.db, historyID, "completed", v)
	return v
}

// Search fingerprints the upload and scans every metadata label bucket on
// the ledger for its hash.
func (r *Runner) Search(ctx context.Context, run *Run, path, fileName string) *Verdict {
	historyID, err := insertRunRecord(r.db, run, fileName, string(media.Detect(path)))
	if err != nil {
		slog.Error("search: create history record", "error", err)
	}

	hash, err := r.fingerprintFile(ctx, run, path)
	if err != nil {
		v := failureVerdict(err)
		fillCounters(v, run)
		finaliseRunRecord(r.db, historyID, "failed", v)
		return v
	}

	v := &Verdict{Hash: hash}
	if match := r.engine.SearchEverywhere(ctx, hash); match != nil {
		v.Message = MsgLedgerFound
		v.Matched = true
		v.TxHash = match.TxHash
		v.Wallet = metadataAddress(match.Metadata)
	} else {
		v.Message = MsgLedgerNotFound
	}
	fillCounters(v, run)
	finaliseRunRecord(r.db, historyID, "completed", v)
	return v
}

// Compare runs the frame-diff analyzer over two uploads and persists one
// annotated composite per differing frame.
func (r *Runner) Compare(ctx context.Context, run *Run, path1, path2 string) *CompareVerdict {
	historyID, err := insertRunRecord(r.db, run,
		filepath.Base(path1)+" vs "+filepath.Base(path2), string(media.FileTypeVideo))
	if err != nil {
		slog.Error("compare: create history record", "error", err)
	}

	verdict, status := r.compare(ctx, run, path1, path2)
	finaliseRunRecord(r.db, historyID, status, &Verdict{
		Message:         verdict.Message,
		TotalFrames:     verdict.TotalFrames,
		ProcessedFrames: verdict.ProcessedFrames,
	})
	if len(verdict.DifferingFrames) > 0 {
		insertArtifacts(r.db, historyID, verdict.DifferingFrames, verdict.ComparisonImages)
	}
	return verdict
}

func (r *Runner) compare(ctx context.Context, run *Run, path1, path2 string) (*CompareVerdict, string) {
	srcA, err := video.Open(ctx, path1)
	if err != nil {
		return compareFailure(run, err), "failed"
	}
	defer srcA.Close()

	srcB, err := video.Open(ctx, path2)
	if err != nil {
		return compareFailure(run, err), "failed"
	}
	defer srcB.Close()

	sink, err := r.store.CompositeSink(run.ID)
	if err != nil {
		slog.Error("compare: create artifact sink", "error", err)
		return compareFailure(run, err), "failed"
	}

	analyzer := diff.New(r.diffOpts)
	result, err := analyzer.Compare(ctx, srcA, srcB, sink, run.Progress)
	if err != nil {
		slog.Error("compare: analyzer", "error", err)
		return compareFailure(run, err), "failed"
	}

	v := &CompareVerdict{
		DifferingFrames:  result.DifferingFrames,
		ComparisonImages: result.ArtifactPaths,
		Truncated:        result.Truncated,
	}
	if len(result.DifferingFrames) > 0 {
		v.Message = fmt.Sprintf("Differences found in frames: %v", result.DifferingFrames)
	} else {
		v.Message = "No differences found."
	}
	if result.Truncated {
		v.Message += " (videos have unequal lengths; only the overlapping frames were compared)"
	}
	processed, total := run.Progress.Snapshot()
	v.ProcessedFrames = processed
	v.TotalFrames = total
	return v, "completed"
}

// fingerprintFile produces the fingerprint hash of the media at path,
// consulting the content-addressed cache first.
func (r *Runner) fingerprintFile(ctx context.Context, run *Run, path string) (string, error) {
	sha, err := contentSHA(path)
	if err == nil {
		if hash, frames, ok := lookupCachedFingerprint(r.db, sha, r.params); ok {
			slog.Info("fingerprint cache hit", "content_sha", sha, "hash", hash)
			run.Progress.SetTotal(frames)
			run.Progress.ProcessedFrames.Store(frames)
			return hash, nil
		}
	}

	src, err := video.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	builder := fingerprint.NewBuilder(r.params)
	bitstring, err := builder.Build(ctx, src, run.Progress)
	if err != nil {
		return "", err
	}
	hash := fingerprint.HashBits(bitstring)

	if sha != "" {
		storeCachedFingerprint(r.db, sha, r.params, hash, run.Progress.ProcessedFrames.Load())
	}
	return hash, nil
}

func (r *Runner) walletVerdict(ctx context.Context, wallet, hash string) *Verdict {
	v := &Verdict{Hash: hash, Wallet: wallet}
	if match := r.engine.SearchByWallet(ctx, wallet, hash); match != nil {
		v.Message = MsgWalletFound
		v.Matched = true
		v.TxHash = match.TxHash
	} else {
		v.Message = MsgWalletNotFound
	}
	return v
}

// failureVerdict maps a pipeline error to its user-facing message.
func failureVerdict(err error) *Verdict {
	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		return &Verdict{Message: msgUnsupported}
	case errors.Is(err, video.ErrDecode):
		return &Verdict{Message: msgDecodeFailed}
	default:
		return &Verdict{Message: msgProcessFailed}
	}
}

func compareFailure(run *Run, err error) *CompareVerdict {
	msg := msgProcessFailed
	if errors.Is(err, media.ErrUnsupportedType) {
		msg = msgUnsupported
	}
	processed, total := run.Progress.Snapshot()
	return &CompareVerdict{
		Message:         msg,
		ProcessedFrames: processed,
		TotalFrames:     total,
	}
}

func fillCounters(v *Verdict, run *Run) {
	processed, total := run.Progress.Snapshot()
	v.ProcessedFrames = processed
	v.TotalFrames = total
}

// metadataAddress pulls an "address" field out of a matching metadata
// payload when the notarizing wallet recorded one.
func metadataAddress(raw json.RawMessage) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if addr, ok := payload["address"].(string); ok {
		return addr
	}
	return ""
}
