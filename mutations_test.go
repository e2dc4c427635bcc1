package workbench_test

import (
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	workbench "github.com/thrawn01/tag-workbench"
)

const img = "img1.png"

func newStore(tags ...string) *workbench.AssetStore {
	return workbench.NewAssetStore([]*workbench.Asset{
		workbench.NewAsset(img, ".png", workbench.Dimensions{Width: 512, Height: 512}, tags),
	})
}

func mustAsset(t *testing.T, s *workbench.AssetStore, id string) workbench.Asset {
	t.Helper()
	asset, ok := s.Asset(id)
	require.True(t, ok, "asset %s not found", id)
	return asset
}

func statuses(t *testing.T, s *workbench.AssetStore, id string) map[string]workbench.TagFlags {
	t.Helper()
	return mustAsset(t, s, id).TagStatus
}

func TestNewAsset(t *testing.T) {
	asset := workbench.NewAsset(img, ".png", workbench.Dimensions{}, []string{"a", " b ", "", "a", "c"})

	assert.Equal(t, []string{"a", "b", "c"}, asset.TagList)
	assert.Equal(t, []string{"a", "b", "c"}, asset.SavedTagList)
	assert.Equal(t, map[string]workbench.TagFlags{"a": 0, "b": 0, "c": 0}, asset.TagStatus)

	asset.TagList[0] = "z"
	assert.Equal(t, "a", asset.SavedTagList[0], "working and saved lists must not share storage")
}

func TestAddTag(t *testing.T) {
	t.Run("AppendsAsPendingAdd", func(t *testing.T) {
		s := newStore("a", "b")
		s.AddTag(img, "c", workbench.PositionEnd)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "b", "c"}, asset.TagList)
		assert.Equal(t, []string{"a", "b"}, asset.SavedTagList)
		assert.Equal(t, map[string]workbench.TagFlags{
			"a": workbench.TagSaved,
			"b": workbench.TagSaved,
			"c": workbench.TagToAdd,
		}, asset.TagStatus)
	})

	t.Run("PrependMarksShiftedTagsDirty", func(t *testing.T) {
		s := newStore("a", "b")
		s.AddTag(img, "c", workbench.PositionStart)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"c", "a", "b"}, asset.TagList)
		assert.Equal(t, map[string]workbench.TagFlags{
			"a": workbench.TagDirty,
			"b": workbench.TagDirty,
			"c": workbench.TagToAdd,
		}, asset.TagStatus)
	})

	t.Run("TrimsName", func(t *testing.T) {
		s := newStore("a")
		s.AddTag(img, "  b  ", workbench.PositionEnd)
		assert.Equal(t, []string{"a", "b"}, mustAsset(t, s, img).TagList)
	})

	t.Run("BlankAndExistingAreNoOps", func(t *testing.T) {
		s := newStore("a", "b")
		s.TagCounts()
		require.True(t, s.CacheValid())

		s.AddTag(img, "   ", workbench.PositionEnd)
		s.AddTag(img, "a", workbench.PositionStart)
		s.AddTag("missing.png", "x", workbench.PositionEnd)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "b"}, asset.TagList)
		assert.False(t, s.IsAssetModified(img))
		assert.True(t, s.CacheValid(), "no-op must not invalidate the tag count cache")
	})

	t.Run("InvalidatesCache", func(t *testing.T) {
		s := newStore("a")
		s.TagCounts()
		s.AddTag(img, "b", workbench.PositionEnd)
		assert.False(t, s.CacheValid())
		assert.Equal(t, map[string]int{"a": 1, "b": 1}, s.TagCounts())
		assert.True(t, s.CacheValid())
	})

	t.Run("ReaddedSavedNameIsNotPendingAdd", func(t *testing.T) {
		s := newStore("a", "b")
		s.EditTag(img, "b", "x")
		s.AddTag(img, "b", workbench.PositionEnd)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "x", "b"}, asset.TagList)
		assert.Equal(t, workbench.TagDirty, asset.TagStatus["b"])
		assert.Equal(t, workbench.TagDirty, asset.TagStatus["x"])
	})
}

func TestAddMultipleTags(t *testing.T) {
	t.Run("FiltersBlanksExistingAndDuplicates", func(t *testing.T) {
		s := newStore("a", "b")
		s.AddMultipleTags(img, []string{"c", "", "a", "d", "c", "  "}, workbench.PositionEnd)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "b", "c", "d"}, asset.TagList)
		assert.Equal(t, workbench.TagToAdd, asset.TagStatus["c"])
		assert.Equal(t, workbench.TagToAdd, asset.TagStatus["d"])
		assert.Equal(t, workbench.TagSaved, asset.TagStatus["a"])
	})

	t.Run("PrependKeepsBatchOrder", func(t *testing.T) {
		s := newStore("a", "b")
		s.AddMultipleTags(img, []string{"x", "y"}, workbench.PositionStart)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"x", "y", "a", "b"}, asset.TagList)
		assert.Equal(t, map[string]workbench.TagFlags{
			"x": workbench.TagToAdd,
			"y": workbench.TagToAdd,
			"a": workbench.TagDirty,
			"b": workbench.TagDirty,
		}, asset.TagStatus)
	})

	t.Run("PrependKeepsOtherFlags", func(t *testing.T) {
		s := newStore("a", "b")
		s.DeleteTag(img, "a")
		s.AddTag(img, "p", workbench.PositionEnd)
		s.AddMultipleTags(img, []string{"x"}, workbench.PositionStart)

		status := statuses(t, s, img)
		assert.Equal(t, workbench.TagToDelete|workbench.TagDirty, status["a"])
		assert.Equal(t, workbench.TagToAdd, status["p"], "pending adds never become dirty")
	})

	t.Run("NothingNewIsNoOp", func(t *testing.T) {
		s := newStore("a")
		s.AddMultipleTags(img, []string{"a", ""}, workbench.PositionStart)
		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a"}, asset.TagList)
		assert.Equal(t, workbench.TagSaved, asset.TagStatus["a"])
	})
}

func TestDeleteTag(t *testing.T) {
	t.Run("ToggleIsItsOwnInverse", func(t *testing.T) {
		s := newStore("a", "b")
		s.DeleteTag(img, "a")
		assert.Equal(t, workbench.TagToDelete, statuses(t, s, img)["a"])
		assert.True(t, s.IsAssetModified(img))

		s.DeleteTag(img, "a")
		assert.Equal(t, workbench.TagSaved, statuses(t, s, img)["a"])
		assert.False(t, s.IsAssetModified(img))
	})

	t.Run("SoftDeleteKeepsPosition", func(t *testing.T) {
		s := newStore("a", "b", "c")
		s.ReorderTags(img, 0, 2)
		s.DeleteTag(img, "a")

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"b", "c", "a"}, asset.TagList)
		assert.Equal(t, workbench.TagToDelete|workbench.TagDirty, asset.TagStatus["a"])
	})

	t.Run("RevertEquivalence", func(t *testing.T) {
		for _, pos := range []workbench.Position{workbench.PositionEnd, workbench.PositionStart} {
			s := newStore("a", "b", "c")
			before := mustAsset(t, s, img)

			s.AddTag(img, "d", pos)
			s.DeleteTag(img, "d")

			after := mustAsset(t, s, img)
			assert.Equal(t, before.TagList, after.TagList)
			assert.Equal(t, before.TagStatus, after.TagStatus)
		}
	})

	t.Run("RemovingPendingAddRecomputesTrailingTags", func(t *testing.T) {
		s := newStore("a", "b", "c")
		s.AddTag(img, "x", workbench.PositionStart)
		s.ReorderTags(img, 0, 1)
		// [a x b c]: a is back in place, b and c are shifted.
		status := statuses(t, s, img)
		require.Equal(t, workbench.TagSaved, status["a"])
		require.Equal(t, workbench.TagDirty, status["b"])

		s.DeleteTag(img, "x")

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "b", "c"}, asset.TagList)
		assert.NotContains(t, asset.TagStatus, "x")
		assert.False(t, s.IsAssetModified(img))
	})

	t.Run("MissingTagIsNoOp", func(t *testing.T) {
		s := newStore("a")
		s.TagCounts()
		s.DeleteTag(img, "zzz")
		s.DeleteTag("missing.png", "a")
		assert.True(t, s.CacheValid())
		assert.False(t, s.IsAssetModified(img))
	})
}

func TestEditTag(t *testing.T) {
	t.Run("RenameMarksDirty", func(t *testing.T) {
		s := newStore("a", "b", "c")
		s.EditTag(img, "b", "x")

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "x", "c"}, asset.TagList)
		assert.Equal(t, map[string]workbench.TagFlags{
			"a": workbench.TagSaved,
			"x": workbench.TagDirty,
			"c": workbench.TagSaved,
		}, asset.TagStatus)
	})

	t.Run("RenameBackIsRevert", func(t *testing.T) {
		s := newStore("a", "b", "c")
		s.EditTag(img, "b", "x")
		s.EditTag(img, "x", "b")

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "b", "c"}, asset.TagList)
		assert.False(t, s.IsAssetModified(img))
	})

	t.Run("RevertRequiresSamePosition", func(t *testing.T) {
		s := newStore("a", "b", "c")
		s.EditTag(img, "b", "x")
		s.ReorderTags(img, 1, 2)
		// [a c x]: renaming x back to b puts b at index 2, saved index 1.
		s.EditTag(img, "x", "b")

		status := statuses(t, s, img)
		assert.Equal(t, workbench.TagDirty, status["b"])
	})

	t.Run("PendingAddStaysPendingAdd", func(t *testing.T) {
		s := newStore("a")
		s.AddTag(img, "d", workbench.PositionEnd)
		s.EditTag(img, "d", "e")

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "e"}, asset.TagList)
		assert.Equal(t, workbench.TagToAdd, asset.TagStatus["e"])
		assert.NotContains(t, asset.TagStatus, "d")
	})

	t.Run("PendingAddRenamedOntoSavedName", func(t *testing.T) {
		s := newStore("a", "b")
		s.EditTag(img, "b", "x")
		s.AddTag(img, "y", workbench.PositionEnd)
		s.EditTag(img, "x", "z")
		s.EditTag(img, "y", "b")

		status := statuses(t, s, img)
		assert.False(t, status["b"].Has(workbench.TagToAdd))
		assert.True(t, status["b"].Has(workbench.TagDirty))
	})

	t.Run("SoftDeletedKeepsMark", func(t *testing.T) {
		s := newStore("a", "b")
		s.DeleteTag(img, "a")
		s.EditTag(img, "a", "z")

		assert.Equal(t, workbench.TagToDelete|workbench.TagDirty, statuses(t, s, img)["z"])
	})

	t.Run("NoOps", func(t *testing.T) {
		s := newStore("a", "b")
		s.EditTag(img, "a", "b")
		s.EditTag(img, "a", "  ")
		s.EditTag(img, "a", "a")
		s.EditTag(img, "zzz", "y")
		s.EditTag("missing.png", "a", "y")

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "b"}, asset.TagList)
		assert.False(t, s.IsAssetModified(img))
	})

	t.Run("InvalidatesCache", func(t *testing.T) {
		s := newStore("a")
		assert.Equal(t, map[string]int{"a": 1}, s.TagCounts())
		s.EditTag(img, "a", "b")
		assert.False(t, s.CacheValid())
		assert.Equal(t, map[string]int{"b": 1}, s.TagCounts())
	})
}

func TestReorderTags(t *testing.T) {
	t.Run("RecomputesDirtyInRange", func(t *testing.T) {
		s := newStore("a", "b", "c", "d")
		s.ReorderTags(img, 0, 2)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"b", "c", "a", "d"}, asset.TagList)
		assert.Equal(t, map[string]workbench.TagFlags{
			"a": workbench.TagDirty,
			"b": workbench.TagDirty,
			"c": workbench.TagDirty,
			"d": workbench.TagSaved,
		}, asset.TagStatus)
	})

	t.Run("MovingBackClearsDirty", func(t *testing.T) {
		s := newStore("a", "b", "c")
		s.ReorderTags(img, 2, 0)
		s.ReorderTags(img, 0, 2)

		asset := mustAsset(t, s, img)
		assert.Equal(t, []string{"a", "b", "c"}, asset.TagList)
		assert.False(t, s.IsAssetModified(img))
	})

	t.Run("DoesNotInvalidateCache", func(t *testing.T) {
		s := newStore("a", "b")
		s.TagCounts()
		s.ReorderTags(img, 0, 1)
		assert.True(t, s.CacheValid())
	})

	t.Run("NoOps", func(t *testing.T) {
		s := newStore("a", "b")
		s.ReorderTags(img, 1, 1)
		s.ReorderTags(img, -1, 0)
		s.ReorderTags(img, 0, 5)
		s.ReorderTags("missing.png", 0, 1)

		assert.Equal(t, []string{"a", "b"}, mustAsset(t, s, img).TagList)
		assert.False(t, s.IsAssetModified(img))
	})
}

func TestScenarioAddReorder(t *testing.T) {
	s := newStore("red", "blue")

	s.AddTag(img, "green", workbench.PositionEnd)
	asset := mustAsset(t, s, img)
	assert.Equal(t, []string{"red", "blue", "green"}, asset.TagList)
	assert.Equal(t, map[string]workbench.TagFlags{
		"red":   workbench.TagSaved,
		"blue":  workbench.TagSaved,
		"green": workbench.TagToAdd,
	}, asset.TagStatus)

	s.ReorderTags(img, 0, 2)
	asset = mustAsset(t, s, img)
	assert.Equal(t, []string{"blue", "green", "red"}, asset.TagList)
	assert.Equal(t, map[string]workbench.TagFlags{
		"blue":  workbench.TagDirty,
		"green": workbench.TagToAdd,
		"red":   workbench.TagDirty,
	}, asset.TagStatus)
}

func TestResetTags(t *testing.T) {
	s := newStore("a", "b", "c")
	s.AddTag(img, "d", workbench.PositionStart)
	s.DeleteTag(img, "b")
	s.EditTag(img, "c", "z")
	s.ReorderTags(img, 0, 3)
	s.AddTag(img, "e", workbench.PositionEnd)
	require.True(t, s.IsAssetModified(img))

	s.ResetTags(img)

	asset := mustAsset(t, s, img)
	assert.Equal(t, asset.SavedTagList, asset.TagList)
	assert.Equal(t, []string{"a", "b", "c"}, asset.TagList)
	assert.Equal(t, map[string]workbench.TagFlags{"a": 0, "b": 0, "c": 0}, asset.TagStatus)
	assert.False(t, s.IsAssetModified(img))
	assert.False(t, s.CacheValid())

	// The working list must be a copy of the saved list.
	s.ReorderTags(img, 0, 1)
	assert.Equal(t, []string{"a", "b", "c"}, mustAsset(t, s, img).SavedTagList)
}

func multiStore() *workbench.AssetStore {
	return workbench.NewAssetStore([]*workbench.Asset{
		workbench.NewAsset("one.png", ".png", workbench.Dimensions{}, []string{"a", "b", "c", "d", "e"}),
		workbench.NewAsset("two.png", ".png", workbench.Dimensions{}, []string{"d", "x", "b"}),
		workbench.NewAsset("three.png", ".png", workbench.Dimensions{}, []string{"b", "y"}),
	})
}

func TestGatherTags(t *testing.T) {
	t.Run("RelocatesContiguously", func(t *testing.T) {
		s := multiStore()
		s.GatherTags([]string{"b", "d"}, []string{"one.png"})

		asset := mustAsset(t, s, "one.png")
		assert.Equal(t, []string{"a", "b", "d", "c", "e"}, asset.TagList)
		assert.Equal(t, map[string]workbench.TagFlags{
			"a": workbench.TagSaved,
			"b": workbench.TagSaved,
			"d": workbench.TagDirty,
			"c": workbench.TagDirty,
			"e": workbench.TagSaved,
		}, asset.TagStatus)
	})

	t.Run("PreservesAssetOrderNotArgumentOrder", func(t *testing.T) {
		s := multiStore()
		s.GatherTags([]string{"b", "d"}, nil)

		assert.Equal(t, []string{"a", "b", "d", "c", "e"}, mustAsset(t, s, "one.png").TagList)
		assert.Equal(t, []string{"d", "b", "x"}, mustAsset(t, s, "two.png").TagList)
		assert.Equal(t, []string{"b", "y"}, mustAsset(t, s, "three.png").TagList, "fewer than two matches is skipped")
		assert.False(t, s.IsAssetModified("three.png"))
	})

	t.Run("PreservesMembership", func(t *testing.T) {
		s := multiStore()
		before := mustAsset(t, s, "one.png").TagList
		s.GatherTags([]string{"e", "a", "c"}, nil)

		after := mustAsset(t, s, "one.png").TagList
		assert.ElementsMatch(t, before, after)
		assert.Equal(t, []string{"a", "c", "e", "b", "d"}, after)
	})
}

func TestCopyTagsToAssets(t *testing.T) {
	s := multiStore()
	s.TagCounts()
	s.CopyTagsToAssets([]string{"b", "z"}, []string{"two.png", "three.png", "missing.png"}, workbench.PositionEnd)

	two := mustAsset(t, s, "two.png")
	assert.Equal(t, []string{"d", "x", "b", "z"}, two.TagList)
	assert.Equal(t, workbench.TagToAdd, two.TagStatus["z"])
	assert.Equal(t, workbench.TagSaved, two.TagStatus["b"])

	three := mustAsset(t, s, "three.png")
	assert.Equal(t, []string{"b", "y", "z"}, three.TagList)
	assert.False(t, s.IsAssetModified("one.png"))
	assert.False(t, s.CacheValid())
	assert.Equal(t, 2, s.TagCounts()["z"])

	t.Run("Prepend", func(t *testing.T) {
		s := multiStore()
		s.CopyTagsToAssets([]string{"new"}, []string{"three.png"}, workbench.PositionStart)
		assert.Equal(t, map[string]workbench.TagFlags{
			"new": workbench.TagToAdd,
			"b":   workbench.TagDirty,
			"y":   workbench.TagDirty,
		}, statuses(t, s, "three.png"))
	})

	t.Run("NothingMissingSkips", func(t *testing.T) {
		s := multiStore()
		s.TagCounts()
		s.CopyTagsToAssets([]string{"b"}, []string{"one.png", "two.png"}, workbench.PositionStart)
		assert.False(t, s.HasModifiedAssets())
		assert.True(t, s.CacheValid())
	})
}

func TestMarkTagsToDelete(t *testing.T) {
	s := multiStore()
	s.AddTag("three.png", "d", workbench.PositionEnd)
	s.MarkTagsToDelete([]string{"d", "zzz"}, nil)

	assert.Equal(t, workbench.TagToDelete, statuses(t, s, "one.png")["d"])
	assert.Equal(t, workbench.TagToDelete, statuses(t, s, "two.png")["d"])
	assert.Equal(t, workbench.TagToAdd, statuses(t, s, "three.png")["d"], "pending adds are skipped")
	assert.Equal(t, 1, s.TagCounts()["d"])

	s.MarkTagsToDelete([]string{"d"}, []string{"one.png"})
	assert.Equal(t, workbench.TagSaved, statuses(t, s, "one.png")["d"])
	assert.Equal(t, workbench.TagToDelete, statuses(t, s, "two.png")["d"])
	assert.Equal(t, 2, s.TagCounts()["d"])
}

func TestInvariantsHoldAcrossOperations(t *testing.T) {
	s := multiStore()
	s.AddMultipleTags("one.png", []string{"p", "q"}, workbench.PositionStart)
	s.ReorderTags("one.png", 6, 0)
	s.EditTag("one.png", "c", "cc")
	s.DeleteTag("one.png", "p")
	s.MarkTagsToDelete([]string{"b"}, nil)
	s.GatherTags([]string{"q", "b", "e"}, nil)
	s.CopyTagsToAssets([]string{"q", "a"}, []string{"two.png"}, workbench.PositionStart)
	s.DeleteTag("two.png", "q")

	for _, id := range s.AssetIDs() {
		asset := mustAsset(t, s, id)

		seen := make(map[string]bool)
		for _, tag := range asset.TagList {
			assert.False(t, seen[tag], "%s: duplicate tag %s", id, tag)
			seen[tag] = true
		}
		assert.ElementsMatch(t, asset.TagList, slices.Collect(maps.Keys(asset.TagStatus)), "%s: one status per tag", id)

		for i, tag := range asset.TagList {
			flags := asset.TagStatus[tag]
			if flags.Has(workbench.TagToAdd) {
				assert.NotContains(t, asset.SavedTagList, tag, "%s: pending add %s in saved list", id, tag)
				assert.False(t, flags.Has(workbench.TagDirty), "%s: pending add %s marked dirty", id, tag)
				continue
			}
			moved := slices.Index(asset.SavedTagList, tag) != i
			assert.Equal(t, moved, flags.Has(workbench.TagDirty), "%s: dirty mismatch for %s", id, tag)
		}
	}
}
