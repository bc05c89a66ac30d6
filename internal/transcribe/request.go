package transcribe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Tier names a size/accuracy class of the recognition model.
type Tier string

const (
	TierTiny   Tier = "tiny"
	TierBase   Tier = "base"
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// Tiers lists all valid model tiers from smallest to largest.
func Tiers() []Tier {
	return []Tier{TierTiny, TierBase, TierSmall, TierMedium, TierLarge}
}

// ParseTier validates a user-supplied tier name.
func ParseTier(value string) (Tier, error) {
	candidate := Tier(strings.ToLower(strings.TrimSpace(value)))
	for _, tier := range Tiers() {
		if candidate == tier {
			return tier, nil
		}
	}
	return "", fmt.Errorf("unknown model tier %q (valid tiers: tiny, base, small, medium, large)", value)
}

// supported source container extensions, lowercase with leading dot.
var supportedExtensions = map[string]struct{}{
	".mp3": {},
	".mp4": {},
	".wav": {},
	".m4a": {},
	".mov": {},
}

// SupportedExtension reports whether the path carries a recognized
// audio/video extension.
func SupportedExtension(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Request describes a single transcription job. Build one with NewRequest so
// validation happens at construction, not deep inside the pipeline; a Request
// is immutable once returned.
type Request struct {
	Source       string
	Destination  string
	Tier         Tier
	Acceleration bool
	Language     string

	// Translate renders the transcript in English regardless of the spoken
	// language.
	Translate bool
	// Timestamps renders the transcript as "[HH:MM:SS] text" segment lines.
	Timestamps bool

	// ChunkThreshold is the decoded duration above which the input is split
	// into overlapping windows; zero disables chunking entirely.
	ChunkThreshold time.Duration
	// ChunkOverlap is the window overlap at chunk boundaries.
	ChunkOverlap time.Duration
}

// RequestOptions carries the caller-tunable parts of a Request.
type RequestOptions struct {
	Destination    string
	Tier           Tier
	Acceleration   bool
	Language       string
	Translate      bool
	Timestamps     bool
	ChunkThreshold time.Duration
	ChunkOverlap   time.Duration
}

// NewRequest validates the source path and resolves the destination,
// defaulting to the source path with its extension replaced by ".txt".
func NewRequest(source string, opts RequestOptions) (Request, error) {
	source = filepath.Clean(strings.TrimSpace(source))
	if source == "" || source == "." {
		return Request{}, invalidInput(source, errors.New("source path is required"))
	}

	if !SupportedExtension(source) {
		return Request{}, invalidInput(source, fmt.Errorf("unsupported file extension %q", filepath.Ext(source)))
	}

	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Request{}, invalidInput(source, errors.New("source file does not exist"))
		}
		return Request{}, invalidInput(source, err)
	}
	if info.IsDir() {
		return Request{}, invalidInput(source, errors.New("source is a directory"))
	}

	tier := opts.Tier
	if tier == "" {
		tier = TierSmall
	}
	if _, err := ParseTier(string(tier)); err != nil {
		return Request{}, invalidInput(source, err)
	}

	destination := strings.TrimSpace(opts.Destination)
	if destination == "" {
		destination = defaultDestination(source)
	}

	overlap := opts.ChunkOverlap
	if opts.ChunkThreshold > 0 && overlap <= 0 {
		overlap = DefaultChunkOverlap
	}
	if opts.ChunkThreshold > 0 && overlap >= opts.ChunkThreshold {
		return Request{}, invalidInput(source, fmt.Errorf("chunk overlap %s must be shorter than threshold %s", overlap, opts.ChunkThreshold))
	}

	return Request{
		Source:         source,
		Destination:    filepath.Clean(destination),
		Tier:           tier,
		Acceleration:   opts.Acceleration,
		Language:       strings.ToLower(strings.TrimSpace(opts.Language)),
		Translate:      opts.Translate,
		Timestamps:     opts.Timestamps,
		ChunkThreshold: opts.ChunkThreshold,
		ChunkOverlap:   overlap,
	}, nil
}

func defaultDestination(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + ".txt"
}

// Result is the successful outcome of a request. Text has already been
// persisted to Destination when a Result is returned.
type Result struct {
	Text        string
	Source      string
	Destination string
}
