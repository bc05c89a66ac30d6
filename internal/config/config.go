// Package config loads optional user defaults from a YAML file. Command-line
// flags always win over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration strings like "5m" or "90s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Defaults mirrors the tunable CLI settings. Zero values mean "not set".
type Defaults struct {
	Model          string   `yaml:"model"`
	ModelDir       string   `yaml:"model_dir"`
	Language       string   `yaml:"language"`
	Translate      bool     `yaml:"translate"`
	Timestamps     bool     `yaml:"timestamps"`
	NoGPU          bool     `yaml:"no_gpu"`
	AutoDownload   *bool    `yaml:"auto_download"`
	ChunkThreshold Duration `yaml:"chunk_threshold"`
	ChunkOverlap   Duration `yaml:"chunk_overlap"`
	SilenceDBFS    float64  `yaml:"silence_threshold_dbfs"`
}

// Load reads the defaults file at path. A missing file yields zero Defaults,
// not an error; a malformed file is an error so typos do not silently apply
// built-in defaults.
func Load(path string) (Defaults, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults{}, nil
		}
		return Defaults{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var defaults Defaults
	if err := yaml.Unmarshal(content, &defaults); err != nil {
		return Defaults{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return defaults, nil
}
