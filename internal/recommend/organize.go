package recommend

import (
	"github.com/dharsanguruparan/FileShelf/internal/model"
)

// CategoryGroup is one non-empty bucket of Categories.
type CategoryGroup struct {
	Category model.Category `json:"category"`
	FileIDs  []string       `json:"file_ids"`
}

// Organize buckets every catalog entry into exactly one category. Entries
// without metadata, or with a category outside the fixed set, go to Other.
// Empty categories are omitted.
func (e *Engine) Organize(catalog []string) map[model.Category][]string {
	requestsTotal.WithLabelValues("organize").Inc()
	out := make(map[model.Category][]string)
	for _, id := range catalog {
		category := e.categoryOf(id)
		out[category] = append(out[category], id)
	}
	return out
}

// Categories is Organize in the fixed display order.
func (e *Engine) Categories(catalog []string) []CategoryGroup {
	buckets := e.Organize(catalog)
	groups := make([]CategoryGroup, 0, len(buckets))
	for _, category := range model.Categories {
		if ids := buckets[category]; len(ids) > 0 {
			groups = append(groups, CategoryGroup{Category: category, FileIDs: ids})
		}
	}
	return groups
}

// Browse returns the catalog entries whose stored category is name, which is
// matched case-insensitively against the fixed set. Unclassified files and
// files with a category outside the set never match. ok is false for an
// unknown category name.
func (e *Engine) Browse(catalog []string, name string) (model.Category, []string, bool) {
	category, ok := model.LookupCategory(name)
	if !ok {
		return "", nil, false
	}
	requestsTotal.WithLabelValues("browse").Inc()
	ids := []string{}
	for _, id := range catalog {
		if meta, ok := e.metadata.Get(id); ok && meta.Category == category {
			ids = append(ids, id)
		}
	}
	return category, ids, true
}

func (e *Engine) categoryOf(id string) model.Category {
	meta, ok := e.metadata.Get(id)
	if !ok || !meta.Category.Known() {
		return model.CategoryOther
	}
	return meta.Category
}
