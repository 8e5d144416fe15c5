// Package fingerprint derives deterministic perceptual fingerprints from
// media frames. A fingerprint is a flat bit string — one fixed-width
// palette code per pixel, frames concatenated in decode order — and only
// its SHA-256 digest ever leaves the process.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"veriframe/internal/media"
	"veriframe/internal/video"
)

// Params fixes the pipeline parameters shared by notarization time and
// verification time. Changing any of them changes every hash, so they are
// not request-tunable.
type Params struct {
	PaletteSize int
	Width       int
	Height      int
}

// DefaultParams returns the canonical pipeline parameters: 8 luminance
// levels (3 bits per pixel) on a 640x480 canvas.
func DefaultParams() Params {
	return Params{PaletteSize: 8, Width: 640, Height: 480}
}

// Tracker receives frame-level progress updates from a running build.
type Tracker interface {
	SetTotal(n int64)
	Advance()
}

// nopTracker is used when the caller does not care about progress.
type nopTracker struct{}

func (nopTracker) SetTotal(int64) {}
func (nopTracker) Advance()       {}

// Builder drives the quantizer over every frame of a source.
type Builder struct {
	params Params
}

// NewBuilder creates a Builder with the given parameters.
func NewBuilder(params Params) *Builder {
	return &Builder{params: params}
}

// Build consumes src frame by frame and returns the concatenated bit
// string. A still image is quantized at its native resolution; video
// frames are first normalized onto the target canvas so sources of any
// dimensions fingerprint comparably. The returned fingerprint is never
// empty: any failure aborts the build and returns an error instead of a
// partial or zero-length fingerprint.
func (b *Builder) Build(ctx context.Context, src video.Source, tracker Tracker) (string, error) {
	if tracker == nil {
		tracker = nopTracker{}
	}
	tracker.SetTotal(int64(src.FrameCount()))

	var sb strings.Builder
	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode frame %d: %w", frames, err)
		}

		if !src.Still() {
			frame = media.Resize(frame, b.params.Width, b.params.Height)
		}
		bits, err := Quantize(frame, b.params.PaletteSize)
		if err != nil {
			return "", fmt.Errorf("quantize frame %d: %w", frames, err)
		}
		sb.WriteString(bits)
		frames++
		tracker.Advance()
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("source yielded no frames: %w", video.ErrSourceUnavailable)
	}
	slog.Debug("fingerprint built", "frames", frames, "bits", sb.Len())
	return sb.String(), nil
}

// HashBits returns the lowercase hex SHA-256 digest of the bit string's
// UTF-8 bytes. The literal character sequence is hashed, padding included:
// "0010" and "10" are different fingerprints.
func HashBits(bitstring string) string {
	sum := sha256.Sum256([]byte(bitstring))
	return hex.EncodeToString(sum[:])
}
