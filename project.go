package workbench

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const DefaultFilePermissions = 0644

// Project lists the image files of a workspace and reads and writes their
// sidecar tag files.
type Project interface {
	ListImageFiles(ctx context.Context) ([]string, error)
	ReadAsset(ctx context.Context, fileID string) (*Asset, error)
	WriteTags(ctx context.Context, fileID string, flattened string) error
}

// FilesystemProject is a Project backed by a directory tree. File ids are
// slash separated paths relative to the root.
type FilesystemProject struct {
	config *Config
	root   string
}

func NewFilesystemProject(config *Config, root string) (*FilesystemProject, error) {
	validator := NewDefaultValidator(config)
	if err := validator.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validator.ValidatePath(root); err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}

	return &FilesystemProject{
		config: config,
		root:   filepath.Clean(root),
	}, nil
}

func (p *FilesystemProject) Root() string {
	return p.root
}

func (p *FilesystemProject) ListImageFiles(ctx context.Context) ([]string, error) {
	var files []string
	for fileID, err := range p.ScanDirectory(ctx) {
		if err != nil {
			return nil, err
		}
		files = append(files, fileID)
	}
	return files, nil
}

// ScanDirectory walks the root in lexical order yielding image file ids.
func (p *FilesystemProject) ScanDirectory(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if err != nil {
				return err
			}

			relPath, _ := filepath.Rel(p.root, path)

			if d.IsDir() {
				if relPath != "." && slices.Contains(p.config.ExcludeDirs, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if !p.isImage(path) {
				return nil
			}

			for _, pattern := range p.config.ExcludePatterns {
				if matched, _ := filepath.Match(pattern, d.Name()); matched {
					return nil
				}
			}

			if !yield(filepath.ToSlash(relPath), nil) {
				return filepath.SkipAll
			}
			return nil
		}); err != nil {
			yield("", err)
		}
	}
}

// ReadAsset reads the image header for its dimensions and parses its sidecar.
// A missing sidecar means the image has no tags yet.
func (p *FilesystemProject) ReadAsset(ctx context.Context, fileID string) (*Asset, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	path, err := p.resolve(fileID)
	if err != nil {
		return nil, err
	}

	dims, err := ReadDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileID, err)
	}

	var tags []string
	content, err := os.ReadFile(SidecarPath(path, p.config.SidecarExtension))
	switch {
	case err == nil:
		tags = ParseTags(string(content))
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("%s: reading tags: %w", fileID, err)
	}

	return NewAsset(fileID, strings.ToLower(filepath.Ext(path)), dims, tags), nil
}

func (p *FilesystemProject) WriteTags(ctx context.Context, fileID string, flattened string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := p.resolve(fileID)
	if err != nil {
		return err
	}
	return os.WriteFile(SidecarPath(path, p.config.SidecarExtension), []byte(flattened), DefaultFilePermissions)
}

func (p *FilesystemProject) resolve(fileID string) (string, error) {
	cleanPath := filepath.Clean(filepath.FromSlash(fileID))
	if filepath.IsAbs(cleanPath) || cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: file id must be relative to the project root", fileID)
	}
	return filepath.Join(p.root, cleanPath), nil
}

func (p *FilesystemProject) isImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range p.config.ImageExtensions {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}
