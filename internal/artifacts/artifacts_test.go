package artifacts

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "uploads"), filepath.Join(t.TempDir(), "comparisons"), 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestSaveUploadKeepsExtension(t *testing.T) {
	m := newTestManager(t)

	path, err := m.SaveUpload("holiday video.mp4", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if filepath.Ext(path) != ".mp4" {
		t.Errorf("saved as %q, extension lost", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}

	m.RemoveUpload(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("upload still on disk after RemoveUpload")
	}
}

func TestSaveUploadUniqueNames(t *testing.T) {
	m := newTestManager(t)
	p1, err := m.SaveUpload("same.jpg", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := m.SaveUpload("same.jpg", strings.NewReader("b"))
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Error("two uploads with the same client name collided")
	}
}

func TestCompositeSinkWritesPerRunDir(t *testing.T) {
	m := newTestManager(t)
	sink, err := m.CompositeSink("run-123")
	if err != nil {
		t.Fatalf("CompositeSink: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	rel, err := sink.SaveComposite(7, img)
	if err != nil {
		t.Fatalf("SaveComposite: %v", err)
	}
	if rel != filepath.Join("run-123", "frame_7.jpg") {
		t.Errorf("relative path = %q", rel)
	}
	if _, err := os.Stat(filepath.Join(m.ComparisonsDir(), rel)); err != nil {
		t.Errorf("composite missing: %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	m := newTestManager(t)

	oldUpload, err := m.SaveUpload("old.jpg", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	freshUpload, err := m.SaveUpload("fresh.jpg", strings.NewReader("y"))
	if err != nil {
		t.Fatal(err)
	}

	sink, err := m.CompositeSink("old-run")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sink.SaveComposite(0, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	oldRunDir := filepath.Join(m.ComparisonsDir(), "old-run")

	// Age the old artifacts past the retention window.
	stale := time.Now().AddDate(0, 0, -8)
	for _, p := range []string{oldUpload, oldRunDir} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.PurgeExpired(context.Background()); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}

	if _, err := os.Stat(oldUpload); !os.IsNotExist(err) {
		t.Error("stale upload survived purge")
	}
	if _, err := os.Stat(oldRunDir); !os.IsNotExist(err) {
		t.Error("stale comparison dir survived purge")
	}
	if _, err := os.Stat(freshUpload); err != nil {
		t.Error("fresh upload was purged")
	}
}
