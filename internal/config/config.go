// Package config holds the tunable knobs for pack building.
//
// Defaults are compiled in; an optional YAML file overrides individual
// values. The zero value of a field in the file means "keep the default".
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config contains the ingestion and document-build tunables.
type Config struct {
	// BulkThresholdBytes is the file size at or below which a file is
	// parsed whole in memory. Larger files use the streaming parser.
	BulkThresholdBytes int64 `yaml:"bulk_threshold_bytes"`

	// StreamProbeLimit bounds how many stream tokens are inspected when
	// probing a candidate record-array path before giving up on it.
	StreamProbeLimit int `yaml:"stream_probe_limit"`

	// ChunkMaxChars is the hard character ceiling for a document chunk.
	// A single line longer than this still becomes one chunk.
	ChunkMaxChars int `yaml:"chunk_max_chars"`

	// ChunkMinChars is the minimum size a message chunk must reach before
	// it may be closed at a line boundary.
	ChunkMinChars int `yaml:"chunk_min_chars"`

	// StoreFileName is the name of the SQLite store inside the pack directory.
	StoreFileName string `yaml:"store_file_name"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		BulkThresholdBytes: 200 << 20, // 200 MiB
		StreamProbeLimit:   64,
		ChunkMaxChars:      2000,
		ChunkMinChars:      600,
		StoreFileName:      "pack.db",
	}
}

// Load reads a YAML config file and merges it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if file.BulkThresholdBytes > 0 {
		cfg.BulkThresholdBytes = file.BulkThresholdBytes
	}
	if file.StreamProbeLimit > 0 {
		cfg.StreamProbeLimit = file.StreamProbeLimit
	}
	if file.ChunkMaxChars > 0 {
		cfg.ChunkMaxChars = file.ChunkMaxChars
	}
	if file.ChunkMinChars > 0 {
		cfg.ChunkMinChars = file.ChunkMinChars
	}
	if file.StoreFileName != "" {
		cfg.StoreFileName = file.StoreFileName
	}

	return cfg, nil
}
