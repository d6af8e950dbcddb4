// Package preference accumulates per-user affinity signals (categories, tags,
// recent history and explicit settings) and persists them write-through.
package preference

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/metadata"
	"github.com/dharsanguruparan/FileShelf/internal/model"
	"github.com/dharsanguruparan/FileShelf/internal/snapshot"
)

// InterestWeight is the bump applied for an explicit show of interest, as
// opposed to the +1 of a passive access.
const InterestWeight = 3

// MetadataSource resolves a file to its classification record.
type MetadataSource interface {
	Get(id string) (model.FileMetadata, bool)
}

// Tracker owns every UserPreference. Each mutation runs under the tracker
// mutex and is followed by a flush of the whole collection.
type Tracker struct {
	mu       sync.RWMutex
	users    map[string]model.UserPreference
	metadata MetadataSource
	backend  snapshot.Backend
	writeMu  sync.Mutex
	logger   zerolog.Logger
}

// NewTracker returns an empty tracker. backend may be nil for an in-memory
// tracker.
func NewTracker(meta MetadataSource, backend snapshot.Backend, logger zerolog.Logger) *Tracker {
	return &Tracker{
		users:    make(map[string]model.UserPreference),
		metadata: meta,
		backend:  backend,
		logger:   logger.With().Str("component", "preference").Logger(),
	}
}

// RecordAccess notes that userID opened fileID. It is a no-op when the file
// has not been classified.
func (t *Tracker) RecordAccess(ctx context.Context, userID, fileID string) {
	meta, ok := t.metadata.Get(fileID)
	if !ok {
		return
	}
	t.mu.Lock()
	pref := t.userLocked(userID)
	pref.RecentlyAccessed = pushRecent(pref.RecentlyAccessed, fileID)
	if meta.Category != "" {
		pref.FavoriteCategories[meta.Category]++
	}
	for _, tag := range meta.Tags {
		pref.FavoriteTags[tag]++
	}
	t.users[userID] = pref
	t.mu.Unlock()
	t.persist(ctx)
}

// RecordInterest bumps category and every tag by InterestWeight. An empty
// category is ignored.
func (t *Tracker) RecordInterest(ctx context.Context, userID string, category model.Category, tags []string) {
	category = model.Category(strings.TrimSpace(string(category)))
	t.mu.Lock()
	pref := t.userLocked(userID)
	if category != "" {
		pref.FavoriteCategories[category] += InterestWeight
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		pref.FavoriteTags[tag] += InterestWeight
	}
	t.users[userID] = pref
	t.mu.Unlock()
	t.persist(ctx)
}

// SetExplicit merges values into the user's explicit preferences, key by key.
func (t *Tracker) SetExplicit(ctx context.Context, userID string, values map[string]any) {
	t.mu.Lock()
	pref := t.userLocked(userID)
	for k, v := range values {
		pref.ExplicitPreferences[k] = v
	}
	t.users[userID] = pref
	t.mu.Unlock()
	t.persist(ctx)
}

// Get returns a copy of the user's record.
func (t *Tracker) Get(userID string) (model.UserPreference, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pref, ok := t.users[userID]
	if !ok {
		return model.UserPreference{}, false
	}
	return pref.Clone(), true
}

// Len returns the number of users with a record.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

// Load replaces the in-memory records with the persisted collection. On
// failure the tracker is left empty.
func (t *Tracker) Load(ctx context.Context) error {
	if t.backend == nil {
		return nil
	}
	loaded := make(map[string]model.UserPreference)
	err := snapshot.Load(ctx, t.backend, snapshot.CollectionPreferences, &loaded)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.users = make(map[string]model.UserPreference)
		t.logger.Error().Err(err).Msg("load user preferences")
		return err
	}
	for id, pref := range loaded {
		loaded[id] = normalize(pref)
	}
	t.users = loaded
	t.logger.Info().Int("users", len(loaded)).Msg("loaded user preferences")
	return nil
}

// Flush writes the whole collection. A failed write keeps the previous
// durable copy.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.backend == nil {
		return nil
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.mu.RLock()
	out := make(map[string]model.UserPreference, len(t.users))
	for id, pref := range t.users {
		out[id] = pref.Clone()
	}
	t.mu.RUnlock()
	err := snapshot.Save(ctx, t.backend, snapshot.CollectionPreferences, out)
	metadata.RecordFlush(snapshot.CollectionPreferences, err)
	if err != nil {
		t.logger.Error().Err(err).Msg("save user preferences")
		return err
	}
	return nil
}

func (t *Tracker) persist(ctx context.Context) {
	// Flush already logs failures; in-memory state stays authoritative.
	_ = t.Flush(ctx)
}

func (t *Tracker) userLocked(userID string) model.UserPreference {
	pref, ok := t.users[userID]
	if !ok {
		return model.NewUserPreference()
	}
	return normalize(pref)
}

// pushRecent moves id to the front, drops any earlier occurrence and caps the
// list at model.MaxRecent.
func pushRecent(recent []string, id string) []string {
	out := make([]string, 0, model.MaxRecent)
	out = append(out, id)
	for _, existing := range recent {
		if existing == id {
			continue
		}
		if len(out) == model.MaxRecent {
			break
		}
		out = append(out, existing)
	}
	return out
}

func normalize(p model.UserPreference) model.UserPreference {
	if p.FavoriteCategories == nil {
		p.FavoriteCategories = make(map[model.Category]int)
	}
	if p.FavoriteTags == nil {
		p.FavoriteTags = make(map[string]int)
	}
	if p.RecentlyAccessed == nil {
		p.RecentlyAccessed = []string{}
	}
	if p.ExplicitPreferences == nil {
		p.ExplicitPreferences = make(map[string]any)
	}
	return p
}
