// Package diff localizes where two videos diverge: it compares aligned
// frame pairs, clusters changed pixels into regions, and emits annotated
// side-by-side composites for every frame that differs.
package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"veriframe/internal/media"
	"veriframe/internal/video"
)

// Options fixes the comparison parameters.
type Options struct {
	Width     int // comparison canvas width
	Height    int // comparison canvas height
	Threshold int // per-pixel intensity cutoff for the change mask
	MinArea   int // regions at or below this pixel area are noise
}

// DefaultOptions returns the canonical comparison parameters.
func DefaultOptions() Options {
	return Options{Width: 640, Height: 480, Threshold: 30, MinArea: 50}
}

// Sink persists one annotated composite per differing frame index.
type Sink interface {
	SaveComposite(frameIndex int, img image.Image) (path string, err error)
}

// Tracker receives frame-level progress updates from a running comparison.
type Tracker interface {
	SetTotal(n int64)
	Advance()
}

type nopTracker struct{}

func (nopTracker) SetTotal(int64) {}
func (nopTracker) Advance()       {}

// Result reports the outcome of one comparison.
type Result struct {
	// DifferingFrames lists the zero-based indices of frames with at least
	// one above-noise changed region, in ascending order.
	DifferingFrames []int
	// ArtifactPaths holds the persisted composite path for each entry of
	// DifferingFrames, index-aligned.
	ArtifactPaths []string
	// FramesCompared is the number of aligned pairs examined.
	FramesCompared int
	// Truncated is set when the two sources had unequal lengths and the
	// longer one's tail was not examined.
	Truncated bool
}

// Analyzer compares two frame sequences pairwise.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer with the given options.
func New(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// Compare walks both sources in lockstep up to the shorter one's length.
// Frames whose grayscale renderings are identical are skipped outright;
// the rest go through the change-mask / region-clustering path and produce
// one persisted composite each. Sources are decoded concurrently per pair.
func (a *Analyzer) Compare(ctx context.Context, srcA, srcB video.Source, sink Sink, tracker Tracker) (*Result, error) {
	if tracker == nil {
		tracker = nopTracker{}
	}
	total := srcA.FrameCount()
	if n := srcB.FrameCount(); n < total {
		total = n
	}
	tracker.SetTotal(int64(total))

	res := &Result{}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var frameA, frameB image.Image
		var errA, errB error
		var g errgroup.Group
		g.Go(func() error { frameA, errA = srcA.Next(); return nil })
		g.Go(func() error { frameB, errB = srcB.Next(); return nil })
		_ = g.Wait()

		if errors.Is(errA, io.EOF) || errors.Is(errB, io.EOF) {
			// Unequal lengths: the longer stream's tail is not examined.
			res.Truncated = errors.Is(errA, io.EOF) != errors.Is(errB, io.EOF)
			break
		}
		if errA != nil {
			return nil, fmt.Errorf("decode frame %d of first video: %w", i, errA)
		}
		if errB != nil {
			return nil, fmt.Errorf("decode frame %d of second video: %w", i, errB)
		}

		path, differs, err := a.compareFrames(i, frameA, frameB, sink)
		if err != nil {
			return nil, err
		}
		if differs {
			res.DifferingFrames = append(res.DifferingFrames, i)
			res.ArtifactPaths = append(res.ArtifactPaths, path)
		}
		res.FramesCompared++
		tracker.Advance()
	}

	slog.Debug("comparison finished",
		"frames", res.FramesCompared,
		"differing", len(res.DifferingFrames),
		"truncated", res.Truncated)
	return res, nil
}

// compareFrames examines one aligned pair. Returns the persisted composite
// path when the pair differs above the noise floor.
func (a *Analyzer) compareFrames(index int, frameA, frameB image.Image, sink Sink) (string, bool, error) {
	rgbA := media.Resize(frameA, a.opts.Width, a.opts.Height)
	rgbB := media.Resize(frameB, a.opts.Width, a.opts.Height)

	grayA := media.Grayscale(rgbA)
	grayB := media.Grayscale(rgbB)
	if bytes.Equal(grayA.Pix, grayB.Pix) {
		return "", false, nil
	}

	mask := changeMask(rgbA, rgbB, a.opts.Threshold)
	regions := findRegions(mask, a.opts.Width, a.opts.Height, a.opts.MinArea)
	if len(regions) == 0 {
		// Pixel-level noise only — the grayscale renderings differed but no
		// region survived the area floor.
		return "", false, nil
	}

	for _, reg := range regions {
		drawBox(rgbA, reg)
		drawBox(rgbB, reg)
	}

	composite := image.NewRGBA(image.Rect(0, 0, 2*a.opts.Width, a.opts.Height))
	draw.Draw(composite, image.Rect(0, 0, a.opts.Width, a.opts.Height), rgbA, image.Point{}, draw.Src)
	draw.Draw(composite, image.Rect(a.opts.Width, 0, 2*a.opts.Width, a.opts.Height), rgbB, image.Point{}, draw.Src)

	path, err := sink.SaveComposite(index, composite)
	if err != nil {
		return "", false, fmt.Errorf("persist composite for frame %d: %w", index, err)
	}
	return path, true, nil
}

// changeMask marks every pixel whose largest per-channel absolute
// difference exceeds threshold.
func changeMask(a, b *image.RGBA, threshold int) []bool {
	w := a.Rect.Dx()
	h := a.Rect.Dy()
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+w*4]
		rowB := b.Pix[y*b.Stride : y*b.Stride+w*4]
		for x := 0; x < w; x++ {
			off := x * 4
			d := absDiff(rowA[off], rowB[off])
			if g := absDiff(rowA[off+1], rowB[off+1]); g > d {
				d = g
			}
			if bl := absDiff(rowA[off+2], rowB[off+2]); bl > d {
				d = bl
			}
			if d > threshold {
				mask[y*w+x] = true
			}
		}
	}
	return mask
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// boxColor is the annotation color for changed regions.
var boxColor = color.RGBA{R: 255, A: 255}

const boxStroke = 2

// drawBox draws a 2-px rectangle outline at the region's extent.
func drawBox(img *image.RGBA, r image.Rectangle) {
	r = r.Intersect(img.Rect)
	for s := 0; s < boxStroke; s++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setIfInside(img, x, r.Min.Y+s)
			setIfInside(img, x, r.Max.Y-1-s)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setIfInside(img, r.Min.X+s, y)
			setIfInside(img, r.Max.X-1-s, y)
		}
	}
}

func setIfInside(img *image.RGBA, x, y int) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetRGBA(x, y, boxColor)
	}
}
