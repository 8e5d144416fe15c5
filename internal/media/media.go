package media

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// ErrUnsupportedType is returned when a file's extension is not a
// recognised image or video format.
var ErrUnsupportedType = errors.New("unsupported media type")

// FileType classifies an uploaded file for pipeline dispatch.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypeOther FileType = "other"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".m4v": true, ".mjpeg": true, ".mjpg": true,
}

// Detect returns the FileType for the given file path based on extension.
// Animated GIFs are classified as images here; the video layer promotes
// them to multi-frame sources when they carry more than one frame.
func Detect(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return FileTypeImage
	case videoExts[ext]:
		return FileTypeVideo
	default:
		return FileTypeOther
	}
}

// ContentType returns the MIME content type for the file based on its
// extension. Returns "application/octet-stream" for unknown types.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// Decode decodes a still image from r using the decoder appropriate for ext.
// Only formats with pure-Go decoders are supported.
func Decode(ext string, r io.Reader) (image.Image, error) {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".png":
		return png.Decode(r)
	case ".gif":
		return gif.Decode(r)
	case ".webp":
		return webp.Decode(r)
	default:
		img, _, err := image.Decode(r)
		return img, err
	}
}

// Resize scales src to exactly w x h using BiLinear interpolation.
// The aspect ratio is NOT preserved: the fingerprint contract requires
// every frame to land on the same canvas regardless of source dimensions.
func Resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Grayscale converts src to an 8-bit luminance image using the standard
// library's Gray color model.
func Grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return dst
}
