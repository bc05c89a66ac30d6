// Package media wraps the external ffmpeg transcoder used to normalize
// arbitrary audio/video containers into mono 16 kHz WAV.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultSampleRate matches what whisper models expect.
const DefaultSampleRate = 16000

// EnvFFmpegPath overrides PATH lookup of the ffmpeg executable.
const EnvFFmpegPath = "TRANSCRIBER_FFMPEG_PATH"

// FFmpegDecoder shells out to ffmpeg. The decoder is a black box from the
// pipeline's perspective: a source path in, a normalized WAV out, stderr
// attached to any failure.
type FFmpegDecoder struct {
	Executable string
	SampleRate int
	Logger     *zap.Logger
}

// NewFFmpegDecoder resolves the ffmpeg executable from the environment
// override or PATH. Resolution is deferred to Available so construction
// never fails; absence surfaces as a precondition error.
func NewFFmpegDecoder(logger *zap.Logger) *FFmpegDecoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegDecoder{
		Executable: strings.TrimSpace(os.Getenv(EnvFFmpegPath)),
		SampleRate: DefaultSampleRate,
		Logger:     logger,
	}
}

// Available reports whether the ffmpeg executable can be found. Callers may
// use it as a startup precondition before accepting work.
func (d *FFmpegDecoder) Available() error {
	_, err := d.resolve()
	return err
}

func (d *FFmpegDecoder) resolve() (string, error) {
	if d.Executable != "" {
		if _, err := os.Stat(d.Executable); err != nil {
			return "", fmt.Errorf("configured ffmpeg path %s: %w", d.Executable, err)
		}
		return d.Executable, nil
	}

	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found on PATH; install ffmpeg or set %s: %w", EnvFFmpegPath, err)
	}
	return path, nil
}

// ExtractWAV converts source into a mono WAV at the configured sample rate.
func (d *FFmpegDecoder) ExtractWAV(ctx context.Context, source, destination string) error {
	executable, err := d.resolve()
	if err != nil {
		return err
	}

	sampleRate := d.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	args := []string{
		"-y",
		"-i", source,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "wav",
		destination,
	}

	cmd := exec.CommandContext(ctx, executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	d.Logger.Debug("running ffmpeg", zap.String("executable", executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		diagnostic := lastStderrLine(stderr.String())
		if diagnostic != "" {
			return fmt.Errorf("ffmpeg failed: %w (%s)", err, diagnostic)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	return nil
}

// lastStderrLine picks the final non-empty stderr line, which is where
// ffmpeg puts the actionable diagnostic; the full banner above it is noise.
func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
