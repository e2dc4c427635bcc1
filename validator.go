package workbench

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

type Validator interface {
	ValidateTag(tag string) *ValidationResult
	ValidatePath(path string) error
	ValidateConfig(config *Config) error
}

type DefaultValidator struct {
	config *Config
}

func NewDefaultValidator(config *Config) *DefaultValidator {
	return &DefaultValidator{
		config: config,
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func (v *DefaultValidator) ValidateTag(tag string) *ValidationResult {
	result := &ValidationResult{
		IsValid:     true,
		Issues:      []string{},
		Suggestions: []string{},
	}

	cleanTag := strings.TrimSpace(tag)
	if cleanTag == "" {
		result.IsValid = false
		result.Issues = append(result.Issues, "Tag cannot be empty")
		return result
	}

	if cleanTag != tag {
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Surrounding whitespace will be trimmed: %s", cleanTag))
	}

	if strings.Contains(cleanTag, ",") {
		result.IsValid = false
		result.Issues = append(result.Issues, "Tag cannot contain a comma (commas separate tags in sidecar files)")

		suggested := strings.Join(ParseTags(cleanTag), " ")
		if suggested != "" {
			result.Suggestions = append(result.Suggestions, fmt.Sprintf("Suggested: %s", suggested))
		}
	}

	if strings.ContainsAny(cleanTag, "\r\n\t") {
		result.IsValid = false
		result.Issues = append(result.Issues, "Tag cannot contain line breaks or tabs")
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Suggested: %s", whitespaceRun.ReplaceAllString(cleanTag, " ")))
	}

	if len(cleanTag) > v.config.MaxTagLength {
		result.IsValid = false
		result.Issues = append(result.Issues, fmt.Sprintf("Tag must be at most %d characters long", v.config.MaxTagLength))
	}

	return result
}

func (v *DefaultValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal")
	}

	return nil
}

func (v *DefaultValidator) ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if config.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}

	if config.LoadConcurrency < 1 {
		return fmt.Errorf("load_concurrency must be at least 1")
	}

	if config.MaxTagLength < 1 {
		return fmt.Errorf("max_tag_length must be at least 1")
	}

	if len(config.ImageExtensions) == 0 {
		return fmt.Errorf("image_extensions cannot be empty")
	}

	if config.SidecarExtension == "" {
		return fmt.Errorf("sidecar_extension cannot be empty")
	}

	if slices.Contains(config.ImageExtensions, config.SidecarExtension) {
		return fmt.Errorf("sidecar_extension %q is also an image extension", config.SidecarExtension)
	}

	for _, pattern := range config.ExcludePatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	return nil
}
