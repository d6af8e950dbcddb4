// Package metadata owns the per-file classification records.
package metadata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/model"
	"github.com/dharsanguruparan/FileShelf/internal/snapshot"
)

// Store maps file identifiers to FileMetadata. It is safe for concurrent use;
// Get returns copies so callers never share the tag slice.
type Store struct {
	mu      sync.RWMutex
	records map[string]model.FileMetadata
	backend snapshot.Backend
	writeMu sync.Mutex
	logger  zerolog.Logger
}

// NewStore returns an empty store persisted through backend (may be nil).
func NewStore(backend snapshot.Backend, logger zerolog.Logger) *Store {
	return &Store{
		records: make(map[string]model.FileMetadata),
		backend: backend,
		logger:  logger.With().Str("component", "metadata").Logger(),
	}
}

// Get returns the record for id.
func (s *Store) Get(id string) (model.FileMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return model.FileMetadata{}, false
	}
	return rec.Clone(), true
}

// Put replaces the whole record for id.
func (s *Store) Put(id string, rec model.FileMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec.Clone()
}

// PutIfAbsent stores rec only when id has no record yet and reports whether
// it did.
func (s *Store) PutIfAbsent(id string, rec model.FileMetadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return false
	}
	s.records[id] = rec.Clone()
	return true
}

// TrackAccess bumps the access counter and stamps the access time. It reports
// false when id has no record.
func (s *Store) TrackAccess(id string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	ts := now.UTC()
	rec.LastAccessed = &ts
	rec.AccessCount++
	s.records[id] = rec
	return true
}

// Len returns the number of classified files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Load replaces the in-memory records with the persisted collection. On
// failure the store is left empty and the error is logged and returned.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	loaded := make(map[string]model.FileMetadata)
	err := snapshot.Load(ctx, s.backend, snapshot.CollectionMetadata, &loaded)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.records = make(map[string]model.FileMetadata)
		s.logger.Error().Err(err).Msg("load file metadata")
		return err
	}
	for id, rec := range loaded {
		if rec.Tags == nil {
			rec.Tags = []string{}
		}
		loaded[id] = rec
	}
	s.records = loaded
	s.logger.Info().Int("files", len(loaded)).Msg("loaded file metadata")
	return nil
}

// Flush writes every record through the backend. A failed write is logged
// and returned; the previous durable copy stays in place.
func (s *Store) Flush(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	out := make(map[string]model.FileMetadata, len(s.records))
	for id, rec := range s.records {
		out[id] = rec.Clone()
	}
	s.mu.RUnlock()
	err := snapshot.Save(ctx, s.backend, snapshot.CollectionMetadata, out)
	RecordFlush(snapshot.CollectionMetadata, err)
	if err != nil {
		s.logger.Error().Err(err).Msg("save file metadata")
		return err
	}
	s.logger.Debug().Int("files", len(out)).Msg("saved file metadata")
	return nil
}
