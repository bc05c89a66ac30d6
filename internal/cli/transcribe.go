package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RCR0101/transcriber/internal/clipboard"
	"github.com/RCR0101/transcriber/internal/download"
	"github.com/RCR0101/transcriber/internal/media"
	"github.com/RCR0101/transcriber/internal/transcribe"
	"github.com/RCR0101/transcriber/internal/whisper"
	"go.uber.org/zap"
)

func (a *appState) runTranscribe(ctx context.Context, out io.Writer, source string) error {
	transcribeFn := a.transcribeFn
	if transcribeFn == nil {
		transcribeFn = a.transcribeFile
	}

	result, err := transcribeFn(ctx, source)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Saved transcript to %s\n", result.Destination)

	if a.copyOutput {
		a.copyTranscript(ctx, result.Text)
	}
	return nil
}

func (a *appState) copyTranscript(ctx context.Context, text string) {
	if text == "" && !a.copyEmpty {
		return
	}

	copyFn := a.copyFn
	if copyFn == nil {
		copyFn = clipboard.CopyText
	}

	if err := copyFn(ctx, text); err != nil {
		if errors.Is(err, clipboard.ErrUnavailable) {
			a.log().Warn("clipboard tool unavailable; transcript left on disk")
			return
		}
		a.log().Warn("failed to copy transcript to clipboard", zap.Error(err))
		return
	}
	a.log().Info("transcript copied to clipboard")
}

func (a *appState) transcribeFile(ctx context.Context, source string) (transcribe.Result, error) {
	req, err := a.buildRequest(source)
	if err != nil {
		return transcribe.Result{}, err
	}

	handler, err := a.buildHandler()
	if err != nil {
		return transcribe.Result{}, err
	}

	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	result, err := handler.Transcribe(ctx, req)
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return transcribe.Result{}, err
	}

	a.log().Info("transcription finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.String("destination", result.Destination))
	return result, nil
}

func (a *appState) buildRequest(source string) (transcribe.Request, error) {
	tier := transcribe.TierSmall
	if parsed, err := transcribe.ParseTier(a.model); err == nil {
		tier = parsed
	}

	return transcribe.NewRequest(source, transcribe.RequestOptions{
		Destination:    a.output,
		Tier:           tier,
		Acceleration:   !a.noGPU,
		Language:       a.language,
		Translate:      a.translate,
		Timestamps:     a.timestamps,
		ChunkThreshold: a.chunkThreshold,
		ChunkOverlap:   a.chunkOverlap,
	})
}

func (a *appState) buildHandler() (*transcribe.Handler, error) {
	engine, err := whisper.NewEngine(a.log())
	if err != nil {
		return nil, &transcribe.Error{
			Kind: transcribe.KindModelFailure,
			Hint: "install whisper.cpp or set " + whisper.EnvWhisperPath,
			Err:  err,
		}
	}

	return transcribe.NewHandler(transcribe.Config{
		Decoder:              media.NewFFmpegDecoder(a.log()),
		Recognizer:           engine,
		ResolveModel:         a.ensureModelAvailable,
		SilenceThresholdDBFS: a.silenceDBFS,
		Logger:               a.log(),
	})
}

// ensureModelAvailable binds the configured model reference to a file on
// disk, downloading the weights when allowed. The tier argument is used only
// when no explicit model reference was configured.
func (a *appState) ensureModelAvailable(ctx context.Context, tier transcribe.Tier) (string, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return "", err
	}

	ref := a.model
	if ref == "" {
		ref = string(tier)
	}

	resolved, err := whisper.ResolveModel(ref, modelDir)
	if err != nil {
		return "", err
	}

	if !resolved.NeedsDownload {
		return resolved.Path, nil
	}

	if !a.autoDownload {
		return "", fmt.Errorf("model %q is missing at %s; run `transcriber setup --model %s` or use --auto-download=true", resolved.Tier, resolved.Path, resolved.Tier)
	}

	a.log().Info("model not found, downloading", zap.String("model", string(resolved.Tier)), zap.String("destination", resolved.Path))
	if err := download.File(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}); err != nil {
		return "", fmt.Errorf("download model %q: %w", resolved.Tier, err)
	}

	return resolved.Path, nil
}
