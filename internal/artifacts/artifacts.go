// Package artifacts owns the on-disk byproducts of a run: saved uploads
// and the comparison composites, with retention-based purging.
package artifacts

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Manager handles saving, enumerating, and purging run artifacts.
type Manager struct {
	uploadsDir     string
	comparisonsDir string
	retentionDays  int
}

// New creates a Manager and ensures both directories exist.
func New(uploadsDir, comparisonsDir string, retentionDays int) (*Manager, error) {
	for _, dir := range []string{uploadsDir, comparisonsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir %q: %w", dir, err)
		}
	}
	return &Manager{
		uploadsDir:     uploadsDir,
		comparisonsDir: comparisonsDir,
		retentionDays:  retentionDays,
	}, nil
}

// ComparisonsDir returns the root the HTTP layer serves composites from.
func (m *Manager) ComparisonsDir() string { return m.comparisonsDir }

// SaveUpload streams an uploaded file to the uploads directory under a
// uuid-prefixed name, keeping the original extension for type dispatch.
func (m *Manager) SaveUpload(name string, r io.Reader) (string, error) {
	ext := filepath.Ext(name)
	path := filepath.Join(m.uploadsDir, uuid.NewString()+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload %q: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload %q: %w", path, err)
	}
	return path, nil
}

// RemoveUpload deletes a saved upload. Best effort; uploads also age out
// through the retention purge.
func (m *Manager) RemoveUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("remove upload", "path", path, "error", err)
	}
}

// CompositeSink returns a sink that writes one composite JPEG per
// differing frame under a per-run subdirectory, so concurrent history is
// never overwritten by later runs.
func (m *Manager) CompositeSink(runID string) (*CompositeSink, error) {
	dir := filepath.Join(m.comparisonsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create comparison dir %q: %w", dir, err)
	}
	return &CompositeSink{dir: dir, runID: runID}, nil
}

// CompositeSink persists annotated composites for one comparison run.
type CompositeSink struct {
	dir   string
	runID string
}

// SaveComposite writes the composite keyed by frame index and returns its
// path relative to the comparisons root (the HTTP layer maps that to a URL).
func (s *CompositeSink) SaveComposite(frameIndex int, img image.Image) (string, error) {
	name := fmt.Sprintf("frame_%d.jpg", frameIndex)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create composite %q: %w", path, err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encode composite %q: %w", path, err)
	}
	return filepath.Join(s.runID, name), nil
}

// PurgeExpired removes uploads and comparison directories older than the
// retention window. Wired to the daily maintenance schedule.
func (m *Manager) PurgeExpired(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -m.retentionDays)

	if err := purgeOlderThan(ctx, m.uploadsDir, cutoff, false); err != nil {
		return err
	}
	return purgeOlderThan(ctx, m.comparisonsDir, cutoff, true)
}

// purgeOlderThan removes direct children of dir with mtime before cutoff.
// Comparison runs are whole directories; uploads are flat files.
func purgeOlderThan(ctx context.Context, dir string, cutoff time.Time, dirs bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read artifact dir %q: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() != dirs {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("purge artifact", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("purged expired artifacts", "dir", dir, "removed", removed)
	}
	return nil
}
