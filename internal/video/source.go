// Package video abstracts frame-by-frame access to uploaded media. A still
// image is a one-frame source; animated GIFs and MJPEG streams decode in
// pure Go; container formats (mp4, mov, ...) decode through an external
// ffmpeg process.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"veriframe/internal/media"
)

// ErrSourceUnavailable is returned when a media source cannot be opened.
// It is a hard failure: the caller must not proceed to hashing.
var ErrSourceUnavailable = errors.New("media source cannot be opened")

// ErrDecode is returned when a source opens but its content cannot be
// decoded. No partial fingerprint is ever derived from such a source.
var ErrDecode = errors.New("media content cannot be decoded")

// Source yields the frames of a piece of media in decode order.
type Source interface {
	// FrameCount reports the source's declared frame count. It may be 0
	// when the container does not declare one.
	FrameCount() int
	// Still reports whether the source is a single still image.
	// Still images are fingerprinted at their native resolution; only
	// video frames are normalized onto the fixed comparison canvas.
	Still() bool
	// Next returns the next frame, or io.EOF when the source is exhausted.
	Next() (image.Image, error)
	Close() error
}

// Open dispatches on the file's extension and returns the appropriate
// Source. Unrecognised extensions return media.ErrUnsupportedType.
func Open(ctx context.Context, path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch media.Detect(path) {
	case media.FileTypeImage:
		if ext == ".gif" {
			return openGIF(path)
		}
		return openImage(path, ext)
	case media.FileTypeVideo:
		if ext == ".mjpeg" || ext == ".mjpg" {
			return openMJPEGFile(path)
		}
		return openFFmpeg(ctx, path)
	default:
		return nil, fmt.Errorf("%q: %w", filepath.Base(path), media.ErrUnsupportedType)
	}
}

// openImage decodes a single still image eagerly so that open-time errors
// surface before any pipeline state is touched.
func openImage(path, ext string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, ErrSourceUnavailable)
	}
	defer f.Close()

	img, err := media.Decode(ext, f)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %v: %w", filepath.Base(path), err, ErrDecode)
	}
	return &imageSource{img: img}, nil
}

// imageSource is a one-frame Source backed by a decoded still image.
type imageSource struct {
	img  image.Image
	done bool
}

func (s *imageSource) FrameCount() int { return 1 }

func (s *imageSource) Still() bool { return true }

func (s *imageSource) Next() (image.Image, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return s.img, nil
}

func (s *imageSource) Close() error { return nil }

// NewStillSource wraps an already-decoded image as a one-frame Source.
// Used by tests and by callers that decode out-of-band.
func NewStillSource(img image.Image) Source {
	return &imageSource{img: img}
}
