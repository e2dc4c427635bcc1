package workbench

import (
	"maps"
	"slices"
	"strings"
)

// AssetStore holds every loaded asset plus the collection level I/O status.
// It is not safe for concurrent use; Workbench serialises access to it.
type AssetStore struct {
	assets []*Asset
	index  map[string]int

	// tagCountsCache is nil whenever a mutation may have changed tag
	// membership or TO_DELETE status. TagCounts rebuilds it on demand.
	tagCountsCache map[string]int

	IOState      IOState
	LoadProgress Progress
	SaveProgress Progress
}

func NewAssetStore(assets []*Asset) *AssetStore {
	s := &AssetStore{IOState: IOIdle}
	s.Replace(assets)
	return s
}

// NewAsset builds an asset whose working list equals its saved list. Blank
// and duplicate tags are dropped, keeping the first occurrence.
func NewAsset(fileID, extension string, dims Dimensions, tags []string) *Asset {
	list := make([]string, 0, len(tags))
	status := make(map[string]TagFlags, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, exists := status[tag]; exists {
			continue
		}
		list = append(list, tag)
		status[tag] = TagSaved
	}

	return &Asset{
		FileID:        fileID,
		FileExtension: extension,
		Dimensions:    dims,
		TagList:       list,
		TagStatus:     status,
		SavedTagList:  slices.Clone(list),
		IOState:       IOIdle,
	}
}

// Replace swaps in a freshly loaded asset collection and rebuilds the index.
func (s *AssetStore) Replace(assets []*Asset) {
	s.assets = assets
	s.index = make(map[string]int, len(assets))
	for i, asset := range assets {
		s.index[asset.FileID] = i
	}
	s.tagCountsCache = nil
}

func (s *AssetStore) Len() int {
	return len(s.assets)
}

func (s *AssetStore) AssetIDs() []string {
	ids := make([]string, len(s.assets))
	for i, asset := range s.assets {
		ids[i] = asset.FileID
	}
	return ids
}

// Asset returns a deep copy of the asset so callers cannot bypass the
// mutation engine.
func (s *AssetStore) Asset(fileID string) (Asset, bool) {
	asset := s.lookup(fileID)
	if asset == nil {
		return Asset{}, false
	}
	cp := *asset
	cp.TagList = slices.Clone(asset.TagList)
	cp.SavedTagList = slices.Clone(asset.SavedTagList)
	cp.TagStatus = maps.Clone(asset.TagStatus)
	return cp, true
}

// CacheValid reports whether the tag count aggregate is currently memoized.
func (s *AssetStore) CacheValid() bool {
	return s.tagCountsCache != nil
}

func (s *AssetStore) lookup(fileID string) *Asset {
	i, ok := s.index[fileID]
	if !ok {
		return nil
	}
	return s.assets[i]
}

func (s *AssetStore) invalidate() {
	s.tagCountsCache = nil
}

// scope resolves an optional id list; nil means every asset.
func (s *AssetStore) scope(fileIDs []string) []*Asset {
	if fileIDs == nil {
		return s.assets
	}
	result := make([]*Asset, 0, len(fileIDs))
	for _, id := range fileIDs {
		if asset := s.lookup(id); asset != nil {
			result = append(result, asset)
		}
	}
	return result
}

// rebase makes persisted the asset's saved list and recomputes the flags of
// the current working list against it, so edits made while the write was in
// flight stay pending. Soft-deleted tags that were left out of the write are
// dropped. A persisted tag no longer in the working list comes back as a
// pending delete at its saved index.
func (s *AssetStore) rebase(asset *Asset, persisted []string) {
	list := make([]string, 0, len(asset.TagList))
	status := make(map[string]TagFlags, len(asset.TagList))
	for _, tag := range asset.TagList {
		flags := asset.TagStatus[tag]
		onDisk := slices.Contains(persisted, tag)
		switch {
		case onDisk:
			status[tag] = flags & TagToDelete
		case flags.Has(TagToDelete):
			continue
		default:
			status[tag] = TagToAdd
		}
		list = append(list, tag)
	}

	for i, tag := range persisted {
		if _, ok := status[tag]; !ok {
			list = slices.Insert(list, min(i, len(list)), tag)
			status[tag] = TagToDelete
		}
	}

	asset.TagList = list
	asset.TagStatus = status
	asset.SavedTagList = slices.Clone(persisted)
	recomputeDirty(asset, 0, len(list)-1)
	s.invalidate()
}
