package transcribe

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// makePCM16WAV builds a minimal RIFF/WAVE file with 16-bit mono samples.
func makePCM16WAV(samples []int16, sampleRate int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}

// toneSamples produces a clearly non-silent square-ish signal.
func toneSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 8000
		} else {
			samples[i] = -8000
		}
	}
	return samples
}

// writeSourceFile creates a dummy media file so request validation passes;
// the fake decoder never reads it.
func writeSourceFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("media"), 0o644))
	return path
}

// fakeDecoder writes a synthetic WAV instead of invoking ffmpeg.
type fakeDecoder struct {
	availableErr error
	extractErr   error
	samples      []int16
	sampleRate   int
	calls        int
}

func (d *fakeDecoder) Available() error {
	return d.availableErr
}

func (d *fakeDecoder) ExtractWAV(_ context.Context, _, destination string) error {
	d.calls++
	if d.extractErr != nil {
		return d.extractErr
	}
	sampleRate := d.sampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return os.WriteFile(destination, makePCM16WAV(d.samples, sampleRate), 0o644)
}

// fakeRecognizer records every job and emits deterministic per-chunk text.
type fakeRecognizer struct {
	err     error
	outputs []string
	jobs    []RecognitionJob
}

func (r *fakeRecognizer) Recognize(_ context.Context, job RecognitionJob) (string, error) {
	r.jobs = append(r.jobs, job)
	if r.err != nil {
		return "", r.err
	}
	idx := len(r.jobs) - 1
	if idx < len(r.outputs) {
		return r.outputs[idx], nil
	}
	return fmt.Sprintf("segment %d", idx), nil
}

func staticModelResolver(path string) ModelResolverFunc {
	return func(context.Context, Tier) (string, error) {
		return path, nil
	}
}

func newTestHandler(t *testing.T, decoder Decoder, recognizer Recognizer) *Handler {
	t.Helper()
	handler, err := NewHandler(Config{
		Decoder:      decoder,
		Recognizer:   recognizer,
		ResolveModel: staticModelResolver("model.bin"),
		WorkDir:      t.TempDir(),
	})
	require.NoError(t, err)
	return handler
}
