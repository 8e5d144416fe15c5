package video

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
)

// JPEG stream markers.
const (
	markerPrefix = 0xff
	markerSOI    = 0xd8
	markerEOI    = 0xd9
	markerTEM    = 0x01
	markerRST0   = 0xd0
	markerRST7   = 0xd7
)

// openMJPEGFile opens a file of concatenated JPEG frames. The whole file
// is parsed up front to establish an exact frame count, so progress totals
// are exact for file-backed MJPEG.
func openMJPEGFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, ErrSourceUnavailable)
	}

	count := 0
	br := bufio.NewReader(bytes.NewReader(data))
	for {
		if _, err := readJPEGFrame(br); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("scan %q: %w", path, err)
		}
		count++
	}
	if count == 0 {
		return nil, fmt.Errorf("%q contains no JPEG frames: %w", path, ErrDecode)
	}
	return &mjpegSource{
		r:     bufio.NewReader(bytes.NewReader(data)),
		total: count,
	}, nil
}

// newMJPEGStream wraps a live stream of concatenated JPEG frames (e.g. an
// ffmpeg image2pipe). total may be 0 when the producer does not declare a
// frame count.
func newMJPEGStream(r io.Reader, total int, closer io.Closer) *mjpegSource {
	return &mjpegSource{
		r:      bufio.NewReader(r),
		total:  total,
		closer: closer,
	}
}

type mjpegSource struct {
	r      *bufio.Reader
	total  int
	closer io.Closer
}

func (s *mjpegSource) FrameCount() int { return s.total }

func (s *mjpegSource) Still() bool { return false }

func (s *mjpegSource) Next() (image.Image, error) {
	frame, err := readJPEGFrame(s.r)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg frame: %v: %w", err, ErrDecode)
	}
	return img, nil
}

func (s *mjpegSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// readJPEGFrame extracts the bytes of the next complete JPEG image from r:
// everything from the next SOI marker through the matching EOI marker.
// Length-delimited segments (headers, EXIF blocks) are skipped by their
// declared length, so an EOI inside application data — an embedded EXIF
// thumbnail, say — never terminates the frame early. Within entropy-coded
// data every 0xFF is byte-stuffed or a restart marker, so the remaining
// marker scan is unambiguous. Returns io.EOF when no further SOI is found.
func readJPEGFrame(r *bufio.Reader) ([]byte, error) {
	// Seek to the next SOI.
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if b != markerPrefix {
			continue
		}
		nxt, err := r.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if nxt == markerSOI {
			break
		}
	}

	buf := []byte{markerPrefix, markerSOI}
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("truncated jpeg frame: %w", ErrDecode)
		}
		buf = append(buf, b)
		if b != markerPrefix {
			continue
		}

		m, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("truncated jpeg frame: %w", ErrDecode)
		}
		if m == markerPrefix {
			// Fill byte; the byte just read may still start a marker.
			if err := r.UnreadByte(); err != nil {
				return nil, fmt.Errorf("truncated jpeg frame: %w", ErrDecode)
			}
			continue
		}
		buf = append(buf, m)

		switch {
		case m == markerEOI:
			return buf, nil
		case m == 0x00, m == markerTEM, m >= markerRST0 && m <= markerRST7:
			// Stuffed data byte or standalone marker: no payload.
		default:
			// Length-delimited segment; the big-endian length counts its
			// own two bytes. Copy the payload verbatim.
			hi, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("truncated jpeg frame: %w", ErrDecode)
			}
			lo, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("truncated jpeg frame: %w", ErrDecode)
			}
			buf = append(buf, hi, lo)
			n := int(hi)<<8 | int(lo)
			if n < 2 {
				return nil, fmt.Errorf("invalid jpeg segment length %d: %w", n, ErrDecode)
			}
			payload := make([]byte, n-2)
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, fmt.Errorf("truncated jpeg frame: %w", ErrDecode)
			}
			buf = append(buf, payload...)
		}
	}
}
