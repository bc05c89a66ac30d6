// Package whisper runs a local whisper.cpp executable as the speech
// recognition collaborator.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/RCR0101/transcriber/internal/transcribe"
	"go.uber.org/zap"
)

// EnvWhisperPath overrides PATH lookup of the whisper-cli executable.
const EnvWhisperPath = "TRANSCRIBER_WHISPER_PATH"

// Engine invokes whisper-cli once per recognition job. It implements
// transcribe.Recognizer.
type Engine struct {
	Executable string
	Logger     *zap.Logger
}

// NewEngine resolves the whisper-cli executable from the environment
// override or PATH.
func NewEngine(logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(EnvWhisperPath)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", EnvWhisperPath, err)
		}
		return &Engine{Executable: override, Logger: logger}, nil
	}

	path, err := exec.LookPath(binaryName())
	if err != nil {
		return nil, fmt.Errorf("%s not found on PATH; install whisper.cpp or set %s: %w", binaryName(), EnvWhisperPath, err)
	}

	return &Engine{Executable: path, Logger: logger}, nil
}

// Recognize transcribes one window of the decoded audio. Offsets and windows
// map to whisper-cli's millisecond -ot/-d flags; a zero window means the
// whole clip.
func (e *Engine) Recognize(ctx context.Context, job transcribe.RecognitionJob) (string, error) {
	if strings.TrimSpace(job.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if strings.TrimSpace(job.ModelPath) == "" {
		return "", errors.New("model path is required")
	}

	if err := ensureExecutable(e.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("transcriber-%d", time.Now().UnixNano()))
	txtOut := outBase + ".txt"

	// Plain-text jobs read the -otxt output file; timestamped jobs parse
	// stdout instead, since segment positions never reach the -otxt file.
	args := []string{"-m", job.ModelPath, "-f", job.AudioPath}
	if !job.Timestamps {
		args = append(args, "-nt", "-otxt", "-of", outBase)
	}
	if job.Translate {
		args = append(args, "-tr")
	}
	if lang := strings.TrimSpace(job.Language); lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}
	if !job.Acceleration {
		args = append(args, "-ng")
	}
	if job.Offset > 0 || job.Window > 0 {
		args = append(args, "-ot", strconv.FormatInt(job.Offset.Milliseconds(), 10))
		args = append(args, "-d", strconv.FormatInt(job.Window.Milliseconds(), 10))
	}

	cmd := exec.CommandContext(ctx, e.Executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.Discard
	if job.Timestamps {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	e.Logger.Debug("running whisper engine", zap.String("engine", e.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return "", classifyRunError(e.Executable, err, stderr.String())
	}

	if job.Timestamps {
		return formatSegments(stdout.String()), nil
	}

	defer os.Remove(txtOut)
	content, err := os.ReadFile(txtOut)
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

// segmentLine matches whisper-cli's stdout segment format,
// "[00:01:02.340 --> 00:01:05.780]  text".
var segmentLine = regexp.MustCompile(`^\[(\d{2,}):(\d{2}):(\d{2})\.\d{3} --> [^\]]+\]\s*(.*)$`)

// formatSegments reduces whisper-cli segment lines to "[HH:MM:SS] text",
// one line per spoken segment. Non-segment output is dropped.
func formatSegments(stdout string) string {
	var lines []string
	for _, raw := range strings.Split(stdout, "\n") {
		m := segmentLine.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[4])
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s:%s:%s] %s", m[1], m[2], m[3], text))
	}
	return strings.Join(lines, "\n")
}

func classifyRunError(executable string, err error, stderr string) error {
	errText := strings.TrimSpace(stderr)
	switch {
	case isOutOfMemoryError(errText):
		return fmt.Errorf("whisper engine ran out of memory (%s)", errText)
	case isAccelerationError(errText):
		return fmt.Errorf("whisper engine GPU initialization failed (%s)", errText)
	case isModelLoadError(errText):
		return fmt.Errorf("whisper engine failed to load the model (%s)", errText)
	case isMissingSharedLibraryError(errText):
		return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper.cpp with BUILD_SHARED_LIBS=OFF or fix the library path", executable, errText)
	case isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()):
		return fmt.Errorf("whisper engine crashed with an illegal CPU instruction; " +
			"your CPU may lack required instruction set extensions; " +
			"set " + EnvWhisperPath + " to a whisper-cli binary built for your CPU")
	case errText != "":
		return fmt.Errorf("whisper engine failed: %w (%s)", err, errText)
	default:
		return fmt.Errorf("whisper engine failed: %w", err)
	}
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isOutOfMemoryError(stderr string) bool {
	return containsAny(stderr, []string{
		"out of memory",
		"failed to allocate",
		"not enough memory",
	})
}

func isAccelerationError(stderr string) bool {
	return containsAny(stderr, []string{
		"cuda error",
		"cublas error",
		"failed to initialize cuda",
		"no cuda devices",
		"metal error",
	})
}

func isModelLoadError(stderr string) bool {
	return containsAny(stderr, []string{
		"failed to load model",
		"invalid model",
		"failed to open",
	})
}

func isMissingSharedLibraryError(stderr string) bool {
	return containsAny(stderr, []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	})
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}

func containsAny(value string, patterns []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}
