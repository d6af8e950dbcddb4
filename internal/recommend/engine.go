// Package recommend ranks catalog entries for a user, finds files similar to
// a reference file and groups files by category. A catalog is an ordered
// slice of file ids; every ranking breaks ties by catalog order.
package recommend

import (
	"sort"

	"github.com/dharsanguruparan/FileShelf/internal/model"
)

// Similarity weights.
const (
	SameCategoryScore = 5
	SharedTagScore    = 2
)

// MetadataSource resolves a file to its classification record.
type MetadataSource interface {
	Get(id string) (model.FileMetadata, bool)
}

// PreferenceSource resolves a user to their preference record.
type PreferenceSource interface {
	Get(userID string) (model.UserPreference, bool)
}

// Engine answers ranking queries against injected stores.
type Engine struct {
	metadata    MetadataSource
	preferences PreferenceSource
}

// New returns an Engine.
func New(meta MetadataSource, prefs PreferenceSource) *Engine {
	return &Engine{metadata: meta, preferences: prefs}
}

type scored struct {
	id    string
	score int
}

// Recommend returns at most count file ids for userID. Without a preference
// record the first count catalog entries are returned. Otherwise recently
// accessed files are skipped and the rest are ranked by category weight plus
// tag weights; unclassified files score 0 but stay eligible.
func (e *Engine) Recommend(userID string, catalog []string, count int) []string {
	requestsTotal.WithLabelValues("recommend").Inc()
	if count <= 0 {
		return []string{}
	}
	pref, ok := e.preferences.Get(userID)
	if !ok {
		n := min(count, len(catalog))
		return append([]string{}, catalog[:n]...)
	}
	candidates := make([]scored, 0, len(catalog))
	for _, id := range catalog {
		if pref.Recent(id) {
			continue
		}
		score := 0
		if meta, ok := e.metadata.Get(id); ok {
			score += pref.FavoriteCategories[meta.Category]
			for _, tag := range meta.Tags {
				score += pref.FavoriteTags[tag]
			}
		}
		candidates = append(candidates, scored{id: id, score: score})
	}
	return top(candidates, count)
}

// Similar returns at most count ids resembling fileID, never fileID itself.
// The result is empty when fileID is unclassified; unclassified candidates
// are skipped.
func (e *Engine) Similar(fileID string, catalog []string, count int) []string {
	requestsTotal.WithLabelValues("similar").Inc()
	ref, ok := e.metadata.Get(fileID)
	if !ok || count <= 0 {
		return []string{}
	}
	refTags := make(map[string]struct{}, len(ref.Tags))
	for _, tag := range ref.Tags {
		refTags[tag] = struct{}{}
	}
	candidates := make([]scored, 0, len(catalog))
	for _, id := range catalog {
		if id == fileID {
			continue
		}
		meta, ok := e.metadata.Get(id)
		if !ok {
			continue
		}
		candidates = append(candidates, scored{id: id, score: similarity(ref.Category, refTags, meta)})
	}
	return top(candidates, count)
}

func similarity(category model.Category, refTags map[string]struct{}, meta model.FileMetadata) int {
	score := 0
	if meta.Category == category {
		score += SameCategoryScore
	}
	seen := make(map[string]struct{}, len(meta.Tags))
	for _, tag := range meta.Tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if _, ok := refTags[tag]; ok {
			score += SharedTagScore
		}
	}
	return score
}

// top sorts by descending score, keeping catalog order among equal scores.
func top(candidates []scored, count int) []string {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	n := min(count, len(candidates))
	out := make([]string, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, c.id)
	}
	return out
}
