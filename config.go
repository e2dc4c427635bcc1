package workbench

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ImageExtensions  []string `yaml:"image_extensions"`
	SidecarExtension string   `yaml:"sidecar_extension"`
	ExcludeDirs      []string `yaml:"exclude_dirs"`
	ExcludePatterns  []string `yaml:"exclude_patterns"`
	BatchSize        int      `yaml:"batch_size"`
	LoadConcurrency  int      `yaml:"load_concurrency"`
	MaxTagLength     int      `yaml:"max_tag_length"`
	LogLevel         string   `yaml:"log_level"`
	// MetricsAddr, when set, serves Prometheus metrics from the MCP server.
	MetricsAddr      string   `yaml:"metrics_addr"`
}

func DefaultConfig() *Config {
	return &Config{
		ImageExtensions:  []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"},
		SidecarExtension: ".txt",
		ExcludeDirs:      []string{".git"},
		BatchSize:        48,
		LoadConcurrency:  8,
		MaxTagLength:     200,
		LogLevel:         "info",
	}
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// SlogLevel converts LogLevel into a slog level. Unknown values are rejected
// by ValidateConfig.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
