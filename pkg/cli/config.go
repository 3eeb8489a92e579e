// Package cli holds the configuration and filesystem layout shared by
// keyvox command-line tools. Configuration lives in ~/.keyvox/config.yaml
// and covers the store location, the embedding model, and optional
// pipeline tuning overrides.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/keyvox/keyvox/pkg/verify"
)

// Config represents the main configuration structure for the CLI
type Config struct {
	// DataDir overrides the store directory (default ~/.keyvox/data)
	DataDir string `yaml:"data_dir,omitempty"`

	// Model configures the speaker embedding backend
	Model ModelConfig `yaml:"model,omitempty"`

	// Verify overrides individual pipeline tunables
	Verify VerifyConfig `yaml:"verify,omitempty"`

	// configPath is the path to the config file
	configPath string
}

// ModelConfig configures the ONNX speaker embedding model
type ModelConfig struct {
	// Path is the ONNX model file path (default ~/.keyvox/models/eres2net.onnx)
	Path string `yaml:"path,omitempty"`

	// InputName is the model's input tensor name
	InputName string `yaml:"input_name,omitempty"`

	// OutputName is the model's output tensor name
	OutputName string `yaml:"output_name,omitempty"`

	// Dim is the embedding dimension
	Dim int `yaml:"dim,omitempty"`

	// SampleRate is the audio sample rate the model expects
	SampleRate int `yaml:"sample_rate,omitempty"`

	// SharedLibrary is the onnxruntime shared library path, when not on
	// the default search path
	SharedLibrary string `yaml:"shared_library,omitempty"`
}

// VerifyConfig overrides pipeline tunables. Unset fields keep the
// shipped defaults; pointer fields distinguish "not set" from zero.
type VerifyConfig struct {
	Alpha             *float64 `yaml:"alpha,omitempty"`
	AbsoluteThreshold *float64 `yaml:"absolute_threshold,omitempty"`
	ZThreshold        *float64 `yaml:"z_threshold,omitempty"`
	CohortMinSize     *int     `yaml:"cohort_min_size,omitempty"`
	WindowSeconds     *float64 `yaml:"window_seconds,omitempty"`
	HopSeconds        *float64 `yaml:"hop_seconds,omitempty"`
	MaxSegments       *int     `yaml:"max_segments,omitempty"`
	MinSegmentSeconds *float64 `yaml:"min_segment_seconds,omitempty"`
	KeepEnergyFrac    *float64 `yaml:"keep_energy_frac,omitempty"`
	TopKFrac          *float64 `yaml:"top_k_frac,omitempty"`
	MinEnrollSeconds  *float64 `yaml:"min_enroll_seconds,omitempty"`
	MinVerifySeconds  *float64 `yaml:"min_verify_seconds,omitempty"`
}

// Params applies the overrides on top of the shipped defaults.
func (c VerifyConfig) Params() verify.Params {
	p := verify.DefaultParams()
	if c.Alpha != nil {
		p.Alpha = *c.Alpha
	}
	if c.AbsoluteThreshold != nil {
		p.AbsoluteThreshold = *c.AbsoluteThreshold
	}
	if c.ZThreshold != nil {
		p.ZThreshold = *c.ZThreshold
	}
	if c.CohortMinSize != nil {
		p.CohortMinSize = *c.CohortMinSize
	}
	if c.WindowSeconds != nil {
		p.WindowSeconds = *c.WindowSeconds
	}
	if c.HopSeconds != nil {
		p.HopSeconds = *c.HopSeconds
	}
	if c.MaxSegments != nil {
		p.MaxSegments = *c.MaxSegments
	}
	if c.MinSegmentSeconds != nil {
		p.MinSegmentSeconds = *c.MinSegmentSeconds
	}
	if c.KeepEnergyFrac != nil {
		p.KeepEnergyFrac = *c.KeepEnergyFrac
	}
	if c.TopKFrac != nil {
		p.TopKFrac = *c.TopKFrac
	}
	if c.MinEnrollSeconds != nil {
		p.MinEnrollSeconds = *c.MinEnrollSeconds
	}
	if c.MinVerifySeconds != nil {
		p.MinVerifySeconds = *c.MinVerifySeconds
	}
	return p
}

// LoadConfig loads or creates the configuration at the default path
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath("")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(customPath string) (*Config, error) {
	var configPath string

	if customPath != "" {
		configPath = customPath
	} else {
		paths, err := NewPaths()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	// Ensure config directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{configPath: configPath}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create empty config file
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration back to its file
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}
