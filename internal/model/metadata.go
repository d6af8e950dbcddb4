package model

import (
	"strings"
	"time"
)

// Category is the browsing bucket a file is classified into.
type Category string

const (
	CategoryDocuments     Category = "Documents"
	CategoryImages        Category = "Images"
	CategoryVideos        Category = "Videos"
	CategoryAudio         Category = "Audio"
	CategoryArchives      Category = "Archives"
	CategoryPresentations Category = "Presentations"
	CategorySpreadsheets  Category = "Spreadsheets"
	CategoryCode          Category = "Code"
	CategoryBooks         Category = "Books"
	CategoryOther         Category = "Other"
)

// MaxTags caps the tag set of a single file.
const MaxTags = 5

// Categories lists the fixed category set in display order.
var Categories = []Category{
	CategoryDocuments,
	CategoryImages,
	CategoryVideos,
	CategoryAudio,
	CategoryArchives,
	CategoryPresentations,
	CategorySpreadsheets,
	CategoryCode,
	CategoryBooks,
	CategoryOther,
}

// Known reports whether c belongs to the fixed category set.
func (c Category) Known() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// LookupCategory resolves a user-supplied name against the fixed set,
// ignoring case.
func LookupCategory(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}

// FileMetadata is the classification record kept for each stored file.
type FileMetadata struct {
	Category       Category   `json:"category"`
	Tags           []string   `json:"tags"`
	Description    string     `json:"description,omitempty"`
	Extension      string     `json:"extension"`
	ClassifiedByAI bool       `json:"classified_by_ai"`
	LastAccessed   *time.Time `json:"last_accessed"`
	AccessCount    int        `json:"access_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (m FileMetadata) Clone() FileMetadata {
	out := m
	out.Tags = append([]string(nil), m.Tags...)
	if m.LastAccessed != nil {
		ts := *m.LastAccessed
		out.LastAccessed = &ts
	}
	return out
}
