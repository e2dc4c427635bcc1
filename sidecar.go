package workbench

import (
	"path/filepath"
	"strings"
)

// TagSeparator joins tags in a sidecar file. Tags themselves may not contain commas.
const TagSeparator = ", "

// ParseTags splits sidecar content into trimmed, non-blank, unique tags.
func ParseTags(content string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(content, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func FlattenTags(tags []string) string {
	return strings.Join(tags, TagSeparator)
}

// SidecarPath returns the tag file that belongs to imagePath.
func SidecarPath(imagePath, sidecarExt string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + sidecarExt
}
