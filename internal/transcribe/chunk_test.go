package transcribe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlanChunksShortInputSingleWindow(t *testing.T) {
	t.Parallel()

	chunks := planChunks(90*time.Second, 5*time.Minute, 2*time.Second)
	require.Equal(t, []Chunk{{Start: 0, Duration: 90 * time.Second}}, chunks)
}

func TestPlanChunksZeroThresholdDisablesChunking(t *testing.T) {
	t.Parallel()

	chunks := planChunks(time.Hour, 0, 2*time.Second)
	require.Len(t, chunks, 1)
	require.Equal(t, time.Hour, chunks[0].Duration)
}

func TestPlanChunksCoversWholeInputWithOverlap(t *testing.T) {
	t.Parallel()

	total := 11 * time.Minute
	threshold := 5 * time.Minute
	overlap := 30 * time.Second

	chunks := planChunks(total, threshold, overlap)
	require.NotEmpty(t, chunks)

	require.Zero(t, chunks[0].Start)
	last := chunks[len(chunks)-1]
	require.Equal(t, total, last.Start+last.Duration, "chunks must reach the end of the input")

	step := threshold - overlap
	for i, chunk := range chunks {
		require.LessOrEqual(t, chunk.Duration, threshold)
		require.Equal(t, time.Duration(i)*step, chunk.Start)
		if i > 0 {
			prev := chunks[i-1]
			require.Greater(t, prev.Start+prev.Duration, chunk.Start, "adjacent chunks must overlap")
		}
	}
}

func TestMergeTranscriptsDedupesBoundaryOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{
			name:  "no overlap",
			parts: []string{"hello there", "how are you"},
			want:  "hello there how are you",
		},
		{
			name:  "single word overlap",
			parts: []string{"the quick brown fox", "fox jumps over"},
			want:  "the quick brown fox jumps over",
		},
		{
			name:  "multi word overlap",
			parts: []string{"one two three four", "three four five six"},
			want:  "one two three four five six",
		},
		{
			name:  "punctuation and case insensitive overlap",
			parts: []string{"see you later.", "Later, alligator."},
			want:  "see you later. alligator.",
		},
		{
			name:  "empty parts skipped",
			parts: []string{"", "only text", ""},
			want:  "only text",
		},
		{
			name:  "single part unchanged",
			parts: []string{"just one chunk"},
			want:  "just one chunk",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, mergeTranscripts(tt.parts))
		})
	}
}

func TestMergeTranscriptsDoesNotSwallowRepeatedPhrases(t *testing.T) {
	t.Parallel()

	// A genuine repetition in speech ("yes yes") must survive merging; the
	// overlap cap keeps the match from consuming an entire short chunk.
	merged := mergeTranscripts([]string{"he said yes yes", "yes yes we agree"})
	require.Contains(t, merged, "we agree")
	require.Contains(t, merged, "he said")
}

func TestPlanChunksTerminatesWhenOverlapMeetsThreshold(t *testing.T) {
	t.Parallel()

	// The step would be zero or negative; the plan degrades to contiguous
	// windows instead of stalling.
	for _, overlap := range []time.Duration{2 * time.Second, 3 * time.Second} {
		chunks := planChunks(10*time.Second, 2*time.Second, overlap)
		require.Len(t, chunks, 5)
		for i, chunk := range chunks {
			require.Equal(t, time.Duration(i)*2*time.Second, chunk.Start)
			require.Equal(t, 2*time.Second, chunk.Duration)
		}
	}
}

func TestMergeTimestampedJoinsSegmentBlocks(t *testing.T) {
	t.Parallel()

	parts := []string{
		"[00:00:00] hello there\n[00:00:04] how are you",
		"",
		"[00:05:01] fine thanks",
	}
	want := "[00:00:00] hello there\n[00:00:04] how are you\n[00:05:01] fine thanks"
	require.Equal(t, want, mergeTimestamped(parts))
	require.Equal(t, "", mergeTimestamped(nil))
}
