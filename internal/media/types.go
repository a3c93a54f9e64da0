package media

import (
	"errors"
	"fmt"
)

// MediaType is the closed set of upload kinds the bot keeps.
type MediaType string

const (
	Photo    MediaType = "photo"
	Video    MediaType = "video"
	Document MediaType = "document"
)

// Types lists every MediaType in display order.
var Types = []MediaType{Photo, Video, Document}

var (
	ErrIndexOutOfRange  = errors.New("media index out of range")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrNoTags           = errors.New("at least one non-empty tag is required")
	ErrPersistence      = errors.New("failed to persist media collection")
)

// ParseType converts the wire form ("photo", "video", "document") to a MediaType.
func ParseType(s string) (MediaType, error) {
	t := MediaType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known variants.
func (t MediaType) Valid() bool {
	switch t {
	case Photo, Video, Document:
		return true
	}
	return false
}

// Display returns the capitalized form shown to users.
func (t MediaType) Display() string {
	switch t {
	case Photo:
		return "Photo"
	case Video:
		return "Video"
	case Document:
		return "Document"
	}
	return string(t)
}

// Record is one saved upload. FileID, Caption and Type never change after creation.
type Record struct {
	FileID  string    `json:"file_id"`
	Caption string    `json:"caption"`
	Type    MediaType `json:"media_type"`
	Tags    []string  `json:"tags"`
}

// Clone returns a deep copy so callers can't reach the store's tag slices.
func (r Record) Clone() Record {
	tags := make([]string, len(r.Tags))
	copy(tags, r.Tags)
	r.Tags = tags
	return r
}

// HasTag reports whether the record carries exactly tag (case-sensitive).
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// UniqueTags drops repeated tags, keeping the first occurrence of each.
// A nil input yields an empty set.
func UniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Upload is the media payload resolved once at the transport boundary.
type Upload struct {
	Type    MediaType
	FileID  string
	Caption string
}

// Entry pairs a record with its current 1-based display position.
type Entry struct {
	Position int
	Record   Record
}

// Stats aggregates the collection.
type Stats struct {
	Total     int
	ByType    map[MediaType]int
	TotalTags int
}
