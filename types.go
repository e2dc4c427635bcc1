package workbench

import (
	"fmt"
	"strings"
)

// TagFlags is a bitmask describing the pending change state of a single tag.
// Flags combine: a tag can be both TagToDelete and TagDirty.
type TagFlags uint8

const (
	TagSaved    TagFlags = 0
	TagToDelete TagFlags = 1
	TagToAdd    TagFlags = 2
	TagDirty    TagFlags = 4
)

func (f TagFlags) Has(flag TagFlags) bool {
	return f&flag != 0
}

func (f TagFlags) With(flag TagFlags) TagFlags {
	return f | flag
}

func (f TagFlags) Without(flag TagFlags) TagFlags {
	return f &^ flag
}

func (f TagFlags) Toggle(flag TagFlags) TagFlags {
	return f ^ flag
}

// IsSaved reports whether the tag has no pending change.
func (f TagFlags) IsSaved() bool {
	return f == TagSaved
}

func (f TagFlags) String() string {
	if f == TagSaved {
		return "SAVED"
	}
	var parts []string
	if f.Has(TagToDelete) {
		parts = append(parts, "TO_DELETE")
	}
	if f.Has(TagToAdd) {
		parts = append(parts, "TO_ADD")
	}
	if f.Has(TagDirty) {
		parts = append(parts, "DIRTY")
	}
	return strings.Join(parts, "|")
}

func (f TagFlags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *TagFlags) UnmarshalText(text []byte) error {
	var flags TagFlags
	for _, part := range strings.Split(string(text), "|") {
		switch part {
		case "SAVED":
		case "TO_DELETE":
			flags |= TagToDelete
		case "TO_ADD":
			flags |= TagToAdd
		case "DIRTY":
			flags |= TagDirty
		default:
			return fmt.Errorf("unknown tag flag %q", part)
		}
	}
	*f = flags
	return nil
}

type IOState string

const (
	IOIdle     IOState = "IDLE"
	IOLoading  IOState = "LOADING"
	IOSaving   IOState = "SAVING"
	IOComplete IOState = "COMPLETE"
	IOError    IOState = "ERROR"
)

// Position selects which end of a tag list new tags are inserted at.
type Position int

const (
	PositionEnd Position = iota
	PositionStart
)

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Asset is one image file together with its working and saved tag lists.
type Asset struct {
	FileID        string              `json:"file_id"`
	FileExtension string              `json:"file_extension"`
	Dimensions    Dimensions          `json:"dimensions"`
	TagList       []string            `json:"tag_list"`
	TagStatus     map[string]TagFlags `json:"tag_status"`
	SavedTagList  []string            `json:"saved_tag_list"`
	IOState       IOState             `json:"io_state,omitempty"`
}

type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type TagWithStatus struct {
	Name   string   `json:"name"`
	Status TagFlags `json:"status"`
}

type TagInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SaveResult is the state committed back into the store after a successful save.
type SaveResult struct {
	Index        int                 `json:"index"`
	FileID       string              `json:"file_id"`
	TagList      []string            `json:"tag_list"`
	TagStatus    map[string]TagFlags `json:"tag_status"`
	SavedTagList []string            `json:"saved_tag_list"`
}

type AssetSaveOutcome struct {
	FileID  string `json:"file_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type SaveAllResult struct {
	SavedCount int                `json:"saved_count"`
	ErrorCount int                `json:"error_count"`
	Results    []AssetSaveOutcome `json:"results"`
	Errors     []string           `json:"errors,omitempty"`
}

type LoadResult struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type ValidationResult struct {
	IsValid     bool     `json:"is_valid"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}
