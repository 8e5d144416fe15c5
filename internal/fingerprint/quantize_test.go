package fingerprint

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

// grayImage builds a w x h grayscale image from row-major pixel values.
func grayImage(w, h int, pix []uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, pix)
	return img
}

func TestCodeWidth(t *testing.T) {
	tests := []struct {
		k    int
		want int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{8, 3},
		{9, 4},
		{16, 4},
		{256, 8},
	}
	for _, tt := range tests {
		if got := CodeWidth(tt.k); got != tt.want {
			t.Errorf("CodeWidth(%d) = %d, want %d", tt.k, got, tt.want)
		}
	}
}

// TestQuantizeUniformWhitePixel covers the canonical scenario: a 1x1 white
// image quantized to 8 colors yields the 3-bit code of palette index 0.
func TestQuantizeUniformWhitePixel(t *testing.T) {
	img := grayImage(1, 1, []uint8{255})
	bits, err := Quantize(img, 8)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}
	if bits != "000" {
		t.Errorf("bits = %q, want %q", bits, "000")
	}
}

func TestQuantizeBitLength(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		k    int
	}{
		{"1x1 k=8", 1, 1, 8},
		{"4x3 k=8", 4, 3, 8},
		{"5x5 k=2", 5, 5, 2},
		{"7x2 k=5", 7, 2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pix := make([]uint8, tt.w*tt.h)
			for i := range pix {
				pix[i] = uint8(i * 17)
			}
			bits, err := Quantize(grayImage(tt.w, tt.h, pix), tt.k)
			if err != nil {
				t.Fatalf("Quantize: %v", err)
			}
			want := tt.w * tt.h * CodeWidth(tt.k)
			if len(bits) != want {
				t.Errorf("len(bits) = %d, want %d", len(bits), want)
			}
			if strings.Trim(bits, "01") != "" {
				t.Errorf("bits contains non-binary characters: %q", bits)
			}
		})
	}
}

// TestQuantizeDeterministic verifies byte-identical output across repeated
// runs on the same input — the property ledger matching depends on.
func TestQuantizeDeterministic(t *testing.T) {
	pix := make([]uint8, 64*48)
	for i := range pix {
		pix[i] = uint8((i * 31) % 256)
	}
	img := grayImage(64, 48, pix)

	first, err := Quantize(img, 8)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Quantize(img, 8)
		if err != nil {
			t.Fatalf("Quantize run %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("run %d produced a different bit string", i)
		}
	}
}

// TestQuantizeAscendingRanks checks that with few distinct levels, darker
// pixels get lower palette indices.
func TestQuantizeAscendingRanks(t *testing.T) {
	// Two levels: black then white.
	bits, err := Quantize(grayImage(2, 1, []uint8{0, 255}), 8)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}
	if bits != "000001" {
		t.Errorf("bits = %q, want %q", bits, "000001")
	}
}

// TestQuantizeTamperSensitivity verifies that pushing one pixel across a
// palette boundary changes the encoding.
func TestQuantizeTamperSensitivity(t *testing.T) {
	// 16 evenly spread levels so quantization takes the bucketed path.
	base := make([]uint8, 16)
	for i := range base {
		base[i] = uint8(i * 16)
	}
	tampered := make([]uint8, len(base))
	copy(tampered, base)
	tampered[0] = 255 // darkest pixel becomes brightest

	a, err := Quantize(grayImage(16, 1, base), 8)
	if err != nil {
		t.Fatalf("Quantize base: %v", err)
	}
	b, err := Quantize(grayImage(16, 1, tampered), 8)
	if err != nil {
		t.Fatalf("Quantize tampered: %v", err)
	}
	if a == b {
		t.Errorf("tampered pixel did not change the fingerprint: %q", a)
	}
}

func TestQuantizeColorInputUsesLuminance(t *testing.T) {
	// A color image and its grayscale rendering must quantize identically.
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgba.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	rgba.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	rgba.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	rgba.SetRGBA(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	gray := image.NewGray(rgba.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			gray.Set(x, y, color.GrayModel.Convert(rgba.At(x, y)))
		}
	}

	a, err := Quantize(rgba, 4)
	if err != nil {
		t.Fatalf("Quantize rgba: %v", err)
	}
	b, err := Quantize(gray, 4)
	if err != nil {
		t.Fatalf("Quantize gray: %v", err)
	}
	if a != b {
		t.Errorf("color input %q != grayscale input %q", a, b)
	}
}

func TestQuantizeRejectsBadInput(t *testing.T) {
	if _, err := Quantize(grayImage(1, 1, []uint8{0}), 0); err == nil {
		t.Error("expected error for palette size 0")
	}
	if _, err := Quantize(image.NewGray(image.Rect(0, 0, 0, 0)), 8); err == nil {
		t.Error("expected error for empty image")
	}
}
