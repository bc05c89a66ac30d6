package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RCR0101/transcriber/internal/transcribe"
)

// Model describes a downloadable whisper.cpp weight file for one tier.
type Model struct {
	Tier     transcribe.Tier
	FileName string
	URL      string
	SHA256   string
}

// registry maps every model tier to its ggml weight file on the whisper.cpp
// Hugging Face mirror, with pinned checksums. "large" resolves to large-v3.
var registry = map[transcribe.Tier]Model{
	transcribe.TierTiny: {
		Tier:     transcribe.TierTiny,
		FileName: "ggml-tiny.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SHA256:   "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	},
	transcribe.TierBase: {
		Tier:     transcribe.TierBase,
		FileName: "ggml-base.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SHA256:   "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	},
	transcribe.TierSmall: {
		Tier:     transcribe.TierSmall,
		FileName: "ggml-small.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SHA256:   "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	},
	transcribe.TierMedium: {
		Tier:     transcribe.TierMedium,
		FileName: "ggml-medium.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SHA256:   "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	},
	transcribe.TierLarge: {
		Tier:     transcribe.TierLarge,
		FileName: "ggml-large-v3.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SHA256:   "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	},
}

// LookupModel returns the registry entry for a tier.
func LookupModel(tier transcribe.Tier) (Model, bool) {
	model, ok := registry[tier]
	return model, ok
}

// ResolvedModel is a model reference bound to a concrete file path.
type ResolvedModel struct {
	Tier          transcribe.Tier
	Path          string
	URL           string
	SHA256        string
	NeedsDownload bool
	IsCustomPath  bool
}

// ResolveModel binds a model reference to a path under modelDir. The
// reference is either a tier name or a path to a ggml weight file; custom
// paths must already exist, named tiers may still need downloading.
func ResolveModel(ref, modelDir string) (ResolvedModel, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = string(transcribe.TierSmall)
	}

	if tier, err := transcribe.ParseTier(ref); err == nil {
		if strings.TrimSpace(modelDir) == "" {
			return ResolvedModel{}, errors.New("model directory must not be empty for a named tier")
		}

		model := registry[tier]
		modelPath := filepath.Join(modelDir, model.FileName)
		_, statErr := os.Stat(modelPath)
		if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("stat model path: %w", statErr)
		}

		return ResolvedModel{
			Tier:          tier,
			Path:          modelPath,
			URL:           model.URL,
			SHA256:        model.SHA256,
			NeedsDownload: errors.Is(statErr, os.ErrNotExist),
		}, nil
	}

	if !looksLikePath(ref) {
		return ResolvedModel{}, fmt.Errorf("unknown model %q (valid tiers: tiny, base, small, medium, large, or a path to a ggml .bin file)", ref)
	}

	customPath := filepath.Clean(ref)
	if _, err := os.Stat(customPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", customPath)
		}
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	}

	return ResolvedModel{Path: customPath, IsCustomPath: true}, nil
}

func looksLikePath(ref string) bool {
	return strings.ContainsRune(ref, os.PathSeparator) || strings.HasSuffix(strings.ToLower(ref), ".bin")
}
