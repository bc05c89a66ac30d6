package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RCR0101/transcriber/internal/audio"
	"go.uber.org/zap"
)

// Decoder extracts a normalized mono 16 kHz WAV stream from a source
// container. Implemented by the ffmpeg subprocess in internal/media.
type Decoder interface {
	// Available reports whether the decoder executable can be found; its
	// absence is a precondition failure, not a per-chunk one.
	Available() error
	ExtractWAV(ctx context.Context, source, destination string) error
}

// RecognitionJob is one model invocation over a single window of audio.
// A zero Window means the whole clip.
type RecognitionJob struct {
	AudioPath    string
	ModelPath    string
	Language     string
	Acceleration bool
	// Translate asks the model to translate speech to English instead of
	// transcribing in the spoken language.
	Translate bool
	// Timestamps asks for per-segment "[HH:MM:SS] text" lines instead of a
	// single block of plain text.
	Timestamps bool
	Offset     time.Duration
	Window     time.Duration
}

// Recognizer runs the speech model over one window of decoded audio.
// Implemented by the whisper-cli subprocess in internal/whisper.
type Recognizer interface {
	Recognize(ctx context.Context, job RecognitionJob) (string, error)
}

// ModelResolverFunc maps a tier to a model weight file on disk, downloading
// it first when the caller allows that.
type ModelResolverFunc func(ctx context.Context, tier Tier) (string, error)

// Config wires a Handler's collaborators.
type Config struct {
	Decoder      Decoder
	Recognizer   Recognizer
	ResolveModel ModelResolverFunc

	// WorkDir holds the decoded intermediate WAV; empty means the OS temp dir.
	WorkDir string

	// SilenceThresholdDBFS enables the silence gate when non-zero: decoded
	// audio quieter than this skips recognition and yields an empty transcript.
	SilenceThresholdDBFS float64

	Logger *zap.Logger
}

// Handler owns the transcription request lifecycle: decode, chunk, recognize,
// assemble, persist. It is synchronous and processes one request per call;
// exactly one of Result or a classified error is produced per request, and
// the handler never retries on its own.
type Handler struct {
	cfg     Config
	probeFn func(path string) (audio.Info, error)
}

func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Decoder == nil {
		return nil, errors.New("decoder is required")
	}
	if cfg.Recognizer == nil {
		return nil, errors.New("recognizer is required")
	}
	if cfg.ResolveModel == nil {
		return nil, errors.New("model resolver is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, probeFn: audio.Probe}, nil
}

// Transcribe runs one request through the full pipeline. The request must
// have been built with NewRequest.
func (h *Handler) Transcribe(ctx context.Context, req Request) (Result, error) {
	if req.Source == "" || req.Destination == "" {
		return Result{}, invalidInput(req.Source, errors.New("request was not built with NewRequest"))
	}

	if err := h.cfg.Decoder.Available(); err != nil {
		return Result{}, decodeFailure(req.Source, err)
	}

	scratch, err := os.MkdirTemp(h.cfg.WorkDir, "transcriber-*")
	if err != nil {
		return Result{}, decodeFailure(req.Source, fmt.Errorf("create scratch directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			h.cfg.Logger.Warn("failed to remove scratch directory", zap.String("path", scratch), zap.Error(err))
		}
	}()

	wavPath := filepath.Join(scratch, "audio.wav")
	h.cfg.Logger.Debug("decoding audio", zap.String("source", req.Source), zap.String("wav", wavPath))
	if err := h.cfg.Decoder.ExtractWAV(ctx, req.Source, wavPath); err != nil {
		return Result{}, decodeFailure(req.Source, err)
	}

	info, err := h.probeFn(wavPath)
	if err != nil {
		return Result{}, decodeFailure(req.Source, fmt.Errorf("decoded audio is unusable: %w", err))
	}
	if info.Duration <= 0 {
		return Result{}, decodeFailure(req.Source, errors.New("decoder produced no audio"))
	}

	if h.cfg.SilenceThresholdDBFS != 0 && info.SilentBelow(h.cfg.SilenceThresholdDBFS) {
		h.cfg.Logger.Info("audio is near-silent, skipping recognition",
			zap.Float64("rms_dbfs", info.RMSdBFS),
			zap.Float64("threshold_dbfs", h.cfg.SilenceThresholdDBFS))
		if err := h.persist(req.Destination, ""); err != nil {
			return Result{}, err
		}
		return Result{Text: "", Source: req.Source, Destination: req.Destination}, nil
	}

	modelPath, err := h.cfg.ResolveModel(ctx, req.Tier)
	if err != nil {
		return Result{}, modelFailure(err)
	}

	// Timestamped segments carry their own positions, so chunk windows stay
	// contiguous and the word-level overlap merge is skipped.
	overlap := req.ChunkOverlap
	if req.Timestamps {
		overlap = 0
	}

	chunks := planChunks(info.Duration, req.ChunkThreshold, overlap)
	h.cfg.Logger.Info("transcribing",
		zap.String("source", req.Source),
		zap.String("tier", string(req.Tier)),
		zap.Duration("duration", info.Duration),
		zap.Int("chunks", len(chunks)))

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		// Cancellation is coarse-grained: checked between chunks only, a
		// running model invocation is never interrupted mid-inference.
		if err := ctx.Err(); err != nil {
			return Result{}, modelFailure(err)
		}

		job := RecognitionJob{
			AudioPath:    wavPath,
			ModelPath:    modelPath,
			Language:     req.Language,
			Acceleration: req.Acceleration,
			Translate:    req.Translate,
			Timestamps:   req.Timestamps,
		}
		if len(chunks) > 1 {
			job.Offset = chunk.Start
			job.Window = chunk.Duration
		}

		started := time.Now()
		text, err := h.cfg.Recognizer.Recognize(ctx, job)
		if err != nil {
			return Result{}, modelFailure(fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err))
		}
		h.cfg.Logger.Debug("chunk recognized",
			zap.Int("chunk", i+1),
			zap.Int("total", len(chunks)),
			zap.Duration("elapsed", time.Since(started)))
		parts = append(parts, text)
	}

	var text string
	if req.Timestamps {
		text = mergeTimestamped(parts)
	} else {
		text = mergeTranscripts(parts)
	}
	if err := h.persist(req.Destination, text); err != nil {
		return Result{}, err
	}

	return Result{Text: text, Source: req.Source, Destination: req.Destination}, nil
}

// persist writes the transcript atomically: a temp file next to the
// destination, synced, then renamed over it. Any failure removes the temp
// file so a partial transcript is never observable at the final path.
func (h *Handler) persist(destination, text string) error {
	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return writeFailure(destination, fmt.Errorf("create destination directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".transcript-*.txt")
	if err != nil {
		return writeFailure(destination, fmt.Errorf("create temp file: %w", err))
	}

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.WriteString(text); err != nil {
		return writeFailure(destination, fmt.Errorf("write transcript: %w", err))
	}
	if text != "" && !endsWithNewline(text) {
		if _, err := tmp.WriteString("\n"); err != nil {
			return writeFailure(destination, fmt.Errorf("write transcript: %w", err))
		}
	}
	if err := tmp.Sync(); err != nil {
		return writeFailure(destination, fmt.Errorf("sync transcript: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return writeFailure(destination, fmt.Errorf("close transcript: %w", err))
	}
	if err := os.Rename(tmp.Name(), destination); err != nil {
		_ = os.Remove(tmp.Name())
		return writeFailure(destination, fmt.Errorf("move transcript into place: %w", err))
	}

	committed = true
	return nil
}

func endsWithNewline(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '\n'
}
