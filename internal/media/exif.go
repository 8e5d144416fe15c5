package media

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// CaptureMeta holds the capture metadata recorded alongside a verification.
// Notarized media often embeds the capture time and device; surfacing it next
// to the ledger verdict lets a reviewer cross-check the claimed provenance.
type CaptureMeta struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// EXIF fields — all optional; zero values are omitted from JSON.
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	CameraMake  string     `json:"camera_make,omitempty"`
	CameraModel string     `json:"camera_model,omitempty"`
	Software    string     `json:"software,omitempty"`
	Artist      string     `json:"artist,omitempty"`
	Copyright   string     `json:"copyright,omitempty"`
	GPSLat      *float64   `json:"gps_lat,omitempty"`
	GPSLon      *float64   `json:"gps_lon,omitempty"`
}

// ExtractCaptureMeta reads EXIF and basic image metadata from the file at
// path. Returns an empty struct (no error) for files that have no EXIF data.
func ExtractCaptureMeta(path string) CaptureMeta {
	var meta CaptureMeta

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	// Read pixel dimensions from the image header only (fast — no full decode).
	if cfg, _, err := image.DecodeConfig(f); err == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}

	// Reset and decode EXIF.
	if _, err := f.Seek(0, 0); err != nil {
		return meta
	}
	x, err := exif.Decode(f)
	if err != nil {
		return meta // no EXIF — not an error
	}

	meta.CameraMake = exifString(x, exif.Make)
	meta.CameraModel = exifString(x, exif.Model)
	meta.Software = exifString(x, exif.Software)
	meta.Artist = exifString(x, exif.Artist)
	meta.Copyright = exifString(x, exif.Copyright)

	if t, err := x.DateTime(); err == nil {
		meta.TakenAt = &t
	}

	if lat, lon, err := x.LatLong(); err == nil {
		meta.GPSLat = &lat
		meta.GPSLon = &lon
	}

	return meta
}

func exifString(x *exif.Exif, field exif.FieldName) string {
	tag, err := x.Get(field)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
