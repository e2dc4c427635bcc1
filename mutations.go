package workbench

import (
	"slices"
	"strings"
)

// AddTag inserts a single tag at the requested end of the asset's list.
func (s *AssetStore) AddTag(fileID, tag string, pos Position) {
	s.AddMultipleTags(fileID, []string{tag}, pos)
}

// AddMultipleTags inserts every tag that is not blank and not already present,
// in the given order, marking each one TO_ADD.
func (s *AssetStore) AddMultipleTags(fileID string, tags []string, pos Position) {
	asset := s.lookup(fileID)
	if asset == nil {
		return
	}
	if insertTags(asset, tags, pos) {
		s.invalidate()
	}
}

// EditTag renames oldTag in place. The renamed tag only loses DIRTY when the
// new name is exactly the saved entry at the same index.
func (s *AssetStore) EditTag(fileID, oldTag, newTag string) {
	asset := s.lookup(fileID)
	if asset == nil {
		return
	}

	newTag = strings.TrimSpace(newTag)
	if newTag == "" || newTag == oldTag {
		return
	}
	idx := slices.Index(asset.TagList, oldTag)
	if idx == -1 {
		return
	}
	if _, exists := asset.TagStatus[newTag]; exists {
		return
	}

	flags := asset.TagStatus[oldTag]
	isRevert := idx < len(asset.SavedTagList) && asset.SavedTagList[idx] == newTag

	switch {
	case flags.Has(TagToAdd) && slices.Contains(asset.SavedTagList, newTag):
		// A pending add renamed onto a saved name is no longer new.
		flags = flags.Without(TagToAdd)
		if isRevert {
			flags = flags.Without(TagDirty)
		} else {
			flags = flags.With(TagDirty)
		}
	case flags.Has(TagToAdd):
		// No saved position to compare against.
	case isRevert:
		flags = flags.Without(TagDirty)
	default:
		flags = flags.With(TagDirty)
	}

	asset.TagList[idx] = newTag
	delete(asset.TagStatus, oldTag)
	asset.TagStatus[newTag] = flags
	s.invalidate()
}

// DeleteTag removes a pending add outright, otherwise toggles TO_DELETE.
func (s *AssetStore) DeleteTag(fileID, tag string) {
	asset := s.lookup(fileID)
	if asset == nil {
		return
	}
	flags, ok := asset.TagStatus[tag]
	if !ok {
		return
	}

	if flags.Has(TagToAdd) {
		idx := slices.Index(asset.TagList, tag)
		asset.TagList = slices.Delete(asset.TagList, idx, idx+1)
		delete(asset.TagStatus, tag)
		recomputeDirty(asset, idx, len(asset.TagList)-1)
	} else {
		asset.TagStatus[tag] = flags.Toggle(TagToDelete)
	}
	s.invalidate()
}

// ReorderTags moves the tag at oldIndex to newIndex.
func (s *AssetStore) ReorderTags(fileID string, oldIndex, newIndex int) {
	asset := s.lookup(fileID)
	if asset == nil || oldIndex == newIndex {
		return
	}
	n := len(asset.TagList)
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
		return
	}

	tag := asset.TagList[oldIndex]
	asset.TagList = slices.Delete(asset.TagList, oldIndex, oldIndex+1)
	asset.TagList = slices.Insert(asset.TagList, newIndex, tag)
	recomputeDirty(asset, min(oldIndex, newIndex), max(oldIndex, newIndex))
}

// ResetTags discards every pending edit on the asset.
func (s *AssetStore) ResetTags(fileID string) {
	asset := s.lookup(fileID)
	if asset == nil {
		return
	}
	resetAsset(asset)
	s.invalidate()
}

// GatherTags moves the given tags next to each other, starting at the lowest
// index any of them currently holds. Relative order is preserved. Assets
// holding fewer than two of the tags are left alone. A nil fileIDs means
// every asset.
func (s *AssetStore) GatherTags(tags []string, fileIDs []string) {
	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[tag] = true
	}

	for _, asset := range s.scope(fileIDs) {
		var present []string
		start := -1
		for i, tag := range asset.TagList {
			if wanted[tag] {
				if start == -1 {
					start = i
				}
				present = append(present, tag)
			}
		}
		if len(present) < 2 {
			continue
		}

		rest := make([]string, 0, len(asset.TagList))
		for _, tag := range asset.TagList {
			if !wanted[tag] {
				rest = append(rest, tag)
			}
		}
		asset.TagList = slices.Insert(rest, start, present...)
		recomputeDirty(asset, 0, len(asset.TagList)-1)
	}
}

// CopyTagsToAssets adds the tags each target is missing.
func (s *AssetStore) CopyTagsToAssets(tags []string, targetIDs []string, pos Position) {
	changed := false
	for _, id := range targetIDs {
		asset := s.lookup(id)
		if asset == nil {
			continue
		}
		if insertTags(asset, tags, pos) {
			changed = true
		}
	}
	if changed {
		s.invalidate()
	}
}

// MarkTagsToDelete toggles TO_DELETE on each given tag an asset holds. Pending
// adds are skipped. A nil fileIDs means every asset.
func (s *AssetStore) MarkTagsToDelete(tags []string, fileIDs []string) {
	for _, asset := range s.scope(fileIDs) {
		for _, tag := range tags {
			flags, ok := asset.TagStatus[tag]
			if !ok || flags.Has(TagToAdd) {
				continue
			}
			asset.TagStatus[tag] = flags.Toggle(TagToDelete)
		}
	}
	s.invalidate()
}

// insertTags reports whether anything was inserted.
func insertTags(asset *Asset, tags []string, pos Position) bool {
	var fresh []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		if _, exists := asset.TagStatus[tag]; exists {
			continue
		}
		seen[tag] = true
		fresh = append(fresh, tag)
	}
	if len(fresh) == 0 {
		return false
	}

	for _, tag := range fresh {
		// A saved name that was renamed away and re-added is a move, not an add.
		if slices.Contains(asset.SavedTagList, tag) {
			asset.TagStatus[tag] = TagSaved
		} else {
			asset.TagStatus[tag] = TagToAdd
		}
	}
	if pos == PositionStart {
		asset.TagList = slices.Insert(asset.TagList, 0, fresh...)
		recomputeDirty(asset, 0, len(asset.TagList)-1)
	} else {
		from := len(asset.TagList)
		asset.TagList = append(asset.TagList, fresh...)
		recomputeDirty(asset, from, len(asset.TagList)-1)
	}
	return true
}

// recomputeDirty sets or clears DIRTY for tags in [from, to] by comparing each
// tag's index with its index in the saved list. Pending adds are skipped.
func recomputeDirty(asset *Asset, from, to int) {
	from = max(from, 0)
	to = min(to, len(asset.TagList)-1)
	for i := from; i <= to; i++ {
		tag := asset.TagList[i]
		flags := asset.TagStatus[tag]
		if flags.Has(TagToAdd) {
			continue
		}
		if slices.Index(asset.SavedTagList, tag) == i {
			asset.TagStatus[tag] = flags.Without(TagDirty)
		} else {
			asset.TagStatus[tag] = flags.With(TagDirty)
		}
	}
}

func resetAsset(asset *Asset) {
	asset.TagList = slices.Clone(asset.SavedTagList)
	status := make(map[string]TagFlags, len(asset.TagList))
	for _, tag := range asset.TagList {
		status[tag] = TagSaved
	}
	asset.TagStatus = status
}

// persistedTags is the working list minus soft-deleted tags.
func persistedTags(asset *Asset) []string {
	result := make([]string, 0, len(asset.TagList))
	for _, tag := range asset.TagList {
		if !asset.TagStatus[tag].Has(TagToDelete) {
			result = append(result, tag)
		}
	}
	return result
}
