package watch

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RCR0101/transcriber/internal/transcribe"
	"github.com/stretchr/testify/require"
)

// copyDecoder stands in for ffmpeg: the "media" files in these tests are
// already WAV, so decoding is a byte copy.
type copyDecoder struct{}

func (copyDecoder) Available() error { return nil }

func (copyDecoder) ExtractWAV(_ context.Context, source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

type staticRecognizer struct {
	text string
}

func (r staticRecognizer) Recognize(context.Context, transcribe.RecognitionJob) (string, error) {
	return r.text, nil
}

// writeWAV writes a short mono 16 kHz PCM16 file with an audible square wave.
func writeWAV(t *testing.T, path string) {
	t.Helper()

	const (
		sampleRate = 16000
		frames     = 3200
	)

	data := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		sample := int16(8000)
		if i%2 == 1 {
			sample = -8000
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(sample))
	}

	buf := make([]byte, 0, 44+len(data))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(data)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate*2)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func newTestWorker(t *testing.T, text string) *transcribe.Worker {
	t.Helper()

	handler, err := transcribe.NewHandler(transcribe.Config{
		Decoder:      copyDecoder{},
		Recognizer:   staticRecognizer{text: text},
		ResolveModel: func(context.Context, transcribe.Tier) (string, error) { return "model.bin", nil },
		WorkDir:      t.TempDir(),
	})
	require.NoError(t, err)

	return transcribe.NewWorker(handler, nil, 4)
}

func TestWatcherTranscribesNewFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	worker := newTestWorker(t, "spotted it")
	build := func(source string) (transcribe.Request, error) {
		return transcribe.NewRequest(source, transcribe.RequestOptions{})
	}

	w, err := New(dir, worker, build, nil, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)
	watchDone := make(chan error, 1)
	go func() { watchDone <- w.Run(ctx) }()

	source := filepath.Join(dir, "meeting.wav")
	writeWAV(t, source)

	select {
	case outcome := <-worker.Outcomes():
		require.Equal(t, transcribe.JobCompleted, outcome.Status)
		require.NoError(t, outcome.Err)
		require.Equal(t, source, outcome.Result.Source)

		content, err := os.ReadFile(outcome.Result.Destination)
		require.NoError(t, err)
		require.Equal(t, "spotted it\n", string(content))
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for transcription outcome")
	}

	cancel()
	require.ErrorIs(t, <-watchDone, context.Canceled)
}

func TestWatcherIgnoresUnsupportedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	worker := newTestWorker(t, "nope")
	build := func(source string) (transcribe.Request, error) {
		return transcribe.NewRequest(source, transcribe.RequestOptions{})
	}

	w, err := New(dir, worker, build, nil, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not media"), 0o644))

	select {
	case outcome := <-worker.Outcomes():
		t.Fatalf("unexpected outcome for unsupported file: %+v", outcome)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherSkipsFileRejectedByBuilder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	worker := newTestWorker(t, "nope")
	build := func(source string) (transcribe.Request, error) {
		return transcribe.Request{}, &transcribe.Error{Kind: transcribe.KindInvalidInput, Path: source}
	}

	w, err := New(dir, worker, build, nil, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)
	go w.Run(ctx)

	writeWAV(t, filepath.Join(dir, "rejected.wav"))

	select {
	case outcome := <-worker.Outcomes():
		t.Fatalf("unexpected outcome for rejected file: %+v", outcome)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestNewFailsOnMissingDirectory(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t, "")
	_, err := New(filepath.Join(t.TempDir(), "absent"), worker, nil, nil, time.Second)
	require.Error(t, err)
}
