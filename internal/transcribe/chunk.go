package transcribe

import (
	"strings"
	"time"
)

// DefaultChunkOverlap is the boundary overlap applied when chunking is
// enabled but no overlap was configured. A couple of seconds is enough to
// avoid cutting a word in half at a window edge.
const DefaultChunkOverlap = 2 * time.Second

// Chunk is one window of a long input. Chunks exist only for the lifetime of
// a single request and are never persisted.
type Chunk struct {
	Start    time.Duration
	Duration time.Duration
}

// planChunks splits total into ordered windows of at most threshold length,
// each overlapping its predecessor by overlap. A total at or below the
// threshold, or a zero threshold, yields a single full-length window.
func planChunks(total, threshold, overlap time.Duration) []Chunk {
	if threshold <= 0 || total <= threshold {
		return []Chunk{{Start: 0, Duration: total}}
	}

	step := threshold - overlap
	if step <= 0 {
		// An overlap at or above the threshold would stall the walk;
		// degrade to contiguous windows instead.
		step = threshold
	}
	var chunks []Chunk
	for start := time.Duration(0); start < total; start += step {
		length := threshold
		if start+length > total {
			length = total - start
		}
		chunks = append(chunks, Chunk{Start: start, Duration: length})
		if start+length >= total {
			break
		}
	}
	return chunks
}

// mergeTranscripts joins per-chunk outputs in chunk order, removing text
// duplicated by the boundary overlap. De-duplication is a simple word-level
// suffix/prefix match: the longest run of words ending the accumulated text
// that also begins the next chunk is dropped from the next chunk.
func mergeTranscripts(parts []string) string {
	var merged []string
	for _, part := range parts {
		words := strings.Fields(part)
		if len(words) == 0 {
			continue
		}
		if len(merged) == 0 {
			merged = words
			continue
		}
		merged = append(merged, words[overlapWords(merged, words):]...)
	}
	return strings.Join(merged, " ")
}

// mergeTimestamped joins per-chunk segment lines. Each line already carries
// its own absolute position, so chunks are planned without overlap and no
// de-duplication is needed.
func mergeTimestamped(parts []string) string {
	var lines []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lines = append(lines, part)
	}
	return strings.Join(lines, "\n")
}

// overlapWords returns the length of the longest suffix of prev that equals
// a prefix of next, capped at half of the shorter side so a repeated phrase
// in normal speech is not swallowed whole.
func overlapWords(prev, next []string) int {
	max := len(prev)
	if len(next) < max {
		max = len(next)
	}
	if max > 1 {
		max = max / 2
	}

	for n := max; n > 0; n-- {
		if wordsEqual(prev[len(prev)-n:], next[:n]) {
			return n
		}
	}
	return 0
}

func wordsEqual(a, b []string) bool {
	for i := range a {
		if !strings.EqualFold(normalizeWord(a[i]), normalizeWord(b[i])) {
			return false
		}
	}
	return true
}

func normalizeWord(w string) string {
	return strings.Trim(w, ".,!?;:\"'")
}
