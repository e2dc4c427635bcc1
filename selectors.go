package workbench

import (
	"maps"
	"sort"
)

// TagCounts maps each tag name to the number of assets displaying it without
// a pending delete. The aggregate is rebuilt from scratch after invalidation.
func (s *AssetStore) TagCounts() map[string]int {
	if s.tagCountsCache == nil {
		counts := make(map[string]int)
		for _, asset := range s.assets {
			for _, tag := range asset.TagList {
				if asset.TagStatus[tag].Has(TagToDelete) {
					continue
				}
				counts[tag]++
			}
		}
		s.tagCountsCache = counts
	}
	return maps.Clone(s.tagCountsCache)
}

// TagCountsSorted lists tags used by at least minCount assets, most used first.
func (s *AssetStore) TagCountsSorted(minCount int) []TagInfo {
	var result []TagInfo
	for name, count := range s.TagCounts() {
		if count >= minCount {
			result = append(result, TagInfo{Name: name, Count: count})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// OrderedTagsWithStatus returns the asset's tags in display order.
func (s *AssetStore) OrderedTagsWithStatus(fileID string) []TagWithStatus {
	asset := s.lookup(fileID)
	if asset == nil {
		return nil
	}
	result := make([]TagWithStatus, len(asset.TagList))
	for i, tag := range asset.TagList {
		result[i] = TagWithStatus{Name: tag, Status: asset.TagStatus[tag]}
	}
	return result
}

func (s *AssetStore) IsAssetModified(fileID string) bool {
	asset := s.lookup(fileID)
	return asset != nil && isModified(asset)
}

func (s *AssetStore) HasModifiedAssets() bool {
	for _, asset := range s.assets {
		if isModified(asset) {
			return true
		}
	}
	return false
}

func (s *AssetStore) ModifiedAssetIDs() []string {
	var ids []string
	for _, asset := range s.assets {
		if isModified(asset) {
			ids = append(ids, asset.FileID)
		}
	}
	return ids
}

func isModified(asset *Asset) bool {
	for _, flags := range asset.TagStatus {
		if !flags.IsSaved() {
			return true
		}
	}
	return false
}
