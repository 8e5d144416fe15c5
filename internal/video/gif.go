package video

import (
	"fmt"
	"image"
	"image/gif"
	"io"
	"os"
	"path/filepath"
)

// openGIF decodes all frames of a GIF eagerly. Frames are yielded as
// stored — no disposal/coalescing pass — which is fine for the fingerprint
// contract as long as the same file always decodes the same way.
func openGIF(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, ErrSourceUnavailable)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %v: %w", filepath.Base(path), err, ErrDecode)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%q has no frames: %w", filepath.Base(path), ErrDecode)
	}
	return &gifSource{frames: g.Image}, nil
}

type gifSource struct {
	frames []*image.Paletted
	next   int
}

func (s *gifSource) FrameCount() int { return len(s.frames) }

// A one-frame GIF is just a still image; only animations are treated as
// video and normalized onto the comparison canvas.
func (s *gifSource) Still() bool { return len(s.frames) == 1 }

func (s *gifSource) Next() (image.Image, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}

func (s *gifSource) Close() error { return nil }

// NewFrameSource wraps a pre-decoded frame slice as a Source. Used by
// tests to build synthetic videos without touching the filesystem.
func NewFrameSource(frames []image.Image) Source {
	return &sliceSource{frames: frames}
}

type sliceSource struct {
	frames []image.Image
	next   int
}

func (s *sliceSource) FrameCount() int { return len(s.frames) }

func (s *sliceSource) Still() bool { return false }

func (s *sliceSource) Next() (image.Image, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}

func (s *sliceSource) Close() error { return nil }
