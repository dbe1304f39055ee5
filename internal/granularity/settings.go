package granularity

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultIndexGranularity      = 8192
	DefaultIndexGranularityBytes = 10 * 1024 * 1024
	DefaultMinBytesForWidePart   = 10 * 1024 * 1024
)

// Settings are the MergeTree table settings that drive granularity.
type Settings struct {
	// Rows per granule ceiling.
	IndexGranularity int `yaml:"index_granularity" json:"index_granularity" validate:"min=1"`
	// Target granule size in bytes; 0 disables adaptive granularity.
	IndexGranularityBytes int `yaml:"index_granularity_bytes" json:"index_granularity_bytes" validate:"min=0"`
	// Use the constant table even when marks are adaptive.
	UseConstAdaptiveGranularity bool `yaml:"use_const_adaptive_granularity" json:"use_const_adaptive_granularity"`
	// Keep writing adaptive marks even for parts that would be non-adaptive.
	EnableMixedGranularityParts bool `yaml:"enable_mixed_granularity_parts" json:"enable_mixed_granularity_parts"`

	// Parts below either threshold are written in the compact layout.
	MinRowsForWidePart  int `yaml:"min_rows_for_wide_part" json:"min_rows_for_wide_part" validate:"min=0"`
	MinBytesForWidePart int `yaml:"min_bytes_for_wide_part" json:"min_bytes_for_wide_part" validate:"min=0"`

	WriteFinalMark bool `yaml:"write_final_mark" json:"write_final_mark"`
	// Compress mark files with the part codec (.cmrk* extensions).
	CompressMarks    bool   `yaml:"compress_marks" json:"compress_marks"`
	CompressionCodec string `yaml:"compression_codec" json:"compression_codec" validate:"oneof=none lz4 zstd"`
}

var validate = validator.New()

// DefaultSettings returns the MergeTree defaults.
func DefaultSettings() Settings {
	return Settings{
		IndexGranularity:            DefaultIndexGranularity,
		IndexGranularityBytes:       DefaultIndexGranularityBytes,
		EnableMixedGranularityParts: true,
		MinBytesForWidePart:         DefaultMinBytesForWidePart,
		WriteFinalMark:              true,
		CompressionCodec:            "lz4",
	}
}

// AdaptiveEnabled reports whether a byte budget is configured.
func (s Settings) AdaptiveEnabled() bool {
	return s.IndexGranularityBytes > 0
}

// Validate checks the settings are internally consistent.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid granularity settings: %w", err)
	}
	return nil
}

// LoadSettings reads YAML settings from path on top of the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
