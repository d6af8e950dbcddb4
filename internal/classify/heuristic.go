package classify

import (
	"strings"
	"time"

	"github.com/dharsanguruparan/FileShelf/internal/model"
)

// extensionCategories maps document extensions onto categories.
var extensionCategories = map[string]model.Category{}

func init() {
	groups := map[model.Category][]string{
		model.CategoryDocuments:     {"pdf", "doc", "docx", "txt", "rtf"},
		model.CategoryImages:        {"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp"},
		model.CategoryVideos:        {"mp4", "avi", "mov", "wmv", "flv", "mkv", "webm"},
		model.CategoryAudio:         {"mp3", "wav", "ogg", "aac", "flac", "m4a"},
		model.CategoryArchives:      {"zip", "rar", "tar", "gz", "7z"},
		model.CategoryPresentations: {"ppt", "pptx"},
		model.CategorySpreadsheets:  {"xls", "xlsx", "csv"},
		model.CategoryCode:          {"py", "js", "html", "css", "java", "cpp", "c", "php", "go", "rb"},
		model.CategoryBooks:         {"epub", "mobi", "azw", "azw3", "fb2"},
	}
	for category, exts := range groups {
		for _, ext := range exts {
			extensionCategories[ext] = category
		}
	}
}

// Extension returns the lower-cased text after the last dot of name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Heuristic classifies a file from its name and kind alone.
func Heuristic(desc Descriptor, now time.Time) model.FileMetadata {
	ext := Extension(desc.Name)
	return model.FileMetadata{
		Category:  heuristicCategory(desc.Kind, ext),
		Tags:      []string{},
		Extension: ext,
		CreatedAt: now.UTC(),
	}
}

func heuristicCategory(kind model.FileKind, ext string) model.Category {
	switch kind {
	case model.KindPhoto:
		return model.CategoryImages
	case model.KindVideo:
		return model.CategoryVideos
	case model.KindAudio:
		return model.CategoryAudio
	case model.KindDocument:
		if c, ok := extensionCategories[ext]; ok {
			return c
		}
	}
	return model.CategoryOther
}
