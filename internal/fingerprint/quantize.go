package fingerprint

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"strings"

	"veriframe/internal/media"
)

// ErrEmptyImage is returned when an image has no pixels to quantize.
var ErrEmptyImage = errors.New("image has no pixels")

// CodeWidth returns the number of bits used to encode one pixel's palette
// index for a palette of k colors: the width of the binary representation
// of k-1, never less than 1.
func CodeWidth(k int) int {
	w := bits.Len(uint(k - 1))
	if w < 1 {
		w = 1
	}
	return w
}

// Quantize reduces img to at most k luminance levels and encodes each
// pixel's palette index as a fixed-width binary code, concatenated in
// row-major order. The palette is derived from the image itself: levels are
// split into k equal-population buckets over the luminance histogram, with
// indices assigned in ascending-luminance order. The reduction is fully
// deterministic — identical pixels and identical k always produce the same
// bit string, which is what makes ledger matching possible at all.
//
// An image that uses d <= k distinct gray levels maps each level to its
// ascending rank, so a uniform image always encodes as all-zero codes.
func Quantize(img image.Image, k int) (string, error) {
	if k < 1 {
		return "", fmt.Errorf("palette size %d: must be >= 1", k)
	}
	gray := media.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return "", ErrEmptyImage
	}

	// Luminance histogram.
	var hist [256]int
	total := w * h
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}

	index := paletteIndex(hist, total, k)

	// Precompute the fixed-width code for every palette index.
	width := CodeWidth(k)
	codes := make([]string, k)
	for i := range codes {
		codes[i] = fmt.Sprintf("%0*b", width, i)
	}

	var sb strings.Builder
	sb.Grow(total * width)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for _, v := range row {
			sb.WriteString(codes[index[v]])
		}
	}
	return sb.String(), nil
}

// paletteIndex maps each of the 256 gray levels to a palette index in
// [0, k). Distinct levels are assigned ascending ranks when there are at
// most k of them; otherwise levels are grouped into k equal-population
// buckets by walking the histogram in ascending luminance order.
func paletteIndex(hist [256]int, total, k int) [256]int {
	var index [256]int

	distinct := 0
	for _, c := range hist {
		if c > 0 {
			distinct++
		}
	}

	if distinct <= k {
		rank := 0
		for v, c := range hist {
			if c > 0 {
				index[v] = rank
				rank++
			}
		}
		return index
	}

	bucket := 0
	seen := 0
	for v, c := range hist {
		if c == 0 {
			continue
		}
		index[v] = bucket
		seen += c
		// Advance once this bucket has consumed its population share.
		for bucket < k-1 && seen*k >= (bucket+1)*total {
			bucket++
		}
	}
	return index
}
