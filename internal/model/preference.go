package model

// MaxRecent bounds UserPreference.RecentlyAccessed.
const MaxRecent = 10

// UserPreference accumulates the affinity signals of one user.
type UserPreference struct {
	FavoriteCategories  map[Category]int `json:"favorite_categories"`
	FavoriteTags        map[string]int   `json:"favorite_tags"`
	RecentlyAccessed    []string         `json:"recently_accessed"`
	ExplicitPreferences map[string]any   `json:"explicit_preferences"`
}

// NewUserPreference returns an empty preference record with initialised maps.
func NewUserPreference() UserPreference {
	return UserPreference{
		FavoriteCategories:  make(map[Category]int),
		FavoriteTags:        make(map[string]int),
		RecentlyAccessed:    []string{},
		ExplicitPreferences: make(map[string]any),
	}
}

// Clone returns a deep copy of the maps and the recent list. Explicit
// preference values are copied shallowly.
func (p UserPreference) Clone() UserPreference {
	out := NewUserPreference()
	for k, v := range p.FavoriteCategories {
		out.FavoriteCategories[k] = v
	}
	for k, v := range p.FavoriteTags {
		out.FavoriteTags[k] = v
	}
	out.RecentlyAccessed = append(out.RecentlyAccessed, p.RecentlyAccessed...)
	for k, v := range p.ExplicitPreferences {
		out.ExplicitPreferences[k] = v
	}
	return out
}

// Recent reports whether fileID is in the recently accessed list.
func (p UserPreference) Recent(fileID string) bool {
	for _, id := range p.RecentlyAccessed {
		if id == fileID {
			return true
		}
	}
	return false
}
