package video

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Binary names resolved from PATH. Overridable for tests.
var (
	ffmpegBinary  = "ffmpeg"
	ffprobeBinary = "ffprobe"
)

// openFFmpeg decodes a container format (mp4, mov, ...) by spawning an
// ffmpeg process that re-emits the video stream as concatenated JPEG
// frames on stdout. The declared frame count comes from a preceding
// ffprobe packet count; a probe failure is tolerated (count 0) since some
// containers do not declare one, but an unstartable decode is not.
func openFFmpeg(ctx context.Context, path string) (Source, error) {
	total, err := probeFrameCount(ctx, path)
	if err != nil {
		slog.Warn("ffprobe frame count unavailable", "path", path, "error", err)
		total = 0
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-an",
		"-sn",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"-",
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", ErrSourceUnavailable)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg for %q: %v: %w", path, err, ErrSourceUnavailable)
	}

	return newMJPEGStream(stdout, total, &processCloser{cmd: cmd, stdout: stdout}), nil
}

// probeFrameCount counts the video stream's packets with ffprobe. One
// packet per frame holds for every codec ffmpeg will hand us here.
func probeFrameCount(ctx context.Context, path string) (int, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	}
	out, err := exec.CommandContext(ctx, ffprobeBinary, args...).Output() //nolint:gosec
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: parse count: %w", path, err)
	}
	return n, nil
}

// processCloser tears down the decode process when the source is closed,
// including early closes where ffmpeg is still producing frames.
type processCloser struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (p *processCloser) Close() error {
	p.stdout.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}
