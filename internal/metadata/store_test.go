package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/model"
	"github.com/dharsanguruparan/FileShelf/internal/snapshot"
)

func TestPutGetOverwrite(t *testing.T) {
	s := NewStore(nil, zerolog.Nop())
	s.Put("f1", model.FileMetadata{Category: model.CategoryImages, Tags: []string{"beach"}})

	got, ok := s.Get("f1")
	if !ok || got.Category != model.CategoryImages {
		t.Fatalf("unexpected record %+v", got)
	}
	got.Tags[0] = "mutated"
	again, _ := s.Get("f1")
	if again.Tags[0] != "beach" {
		t.Fatalf("Get must return a copy, tags now %v", again.Tags)
	}

	s.Put("f1", model.FileMetadata{Category: model.CategoryCode})
	again, _ = s.Get("f1")
	if again.Category != model.CategoryCode || len(again.Tags) != 0 {
		t.Fatalf("Put must overwrite the whole record: %+v", again)
	}

	if _, ok := s.Get("missing"); ok {
		t.Fatalf("unexpected record for unknown id")
	}
}

func TestPutIfAbsentKeepsExistingRecord(t *testing.T) {
	s := NewStore(nil, zerolog.Nop())
	if !s.PutIfAbsent("f1", model.FileMetadata{Category: model.CategoryImages}) {
		t.Fatalf("first insert should store the record")
	}
	s.TrackAccess("f1", time.Now())
	if s.PutIfAbsent("f1", model.FileMetadata{Category: model.CategoryCode}) {
		t.Fatalf("second insert must not replace the record")
	}
	got, _ := s.Get("f1")
	if got.Category != model.CategoryImages || got.AccessCount != 1 {
		t.Fatalf("record changed: %+v", got)
	}
}

func TestTrackAccessCountsEveryAccess(t *testing.T) {
	s := NewStore(nil, zerolog.Nop())
	s.Put("f1", model.FileMetadata{Category: model.CategoryDocuments, AccessCount: 3})

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	const n = 7
	for i := 0; i < n; i++ {
		if !s.TrackAccess("f1", now) {
			t.Fatalf("TrackAccess reported a missing record")
		}
	}
	got, _ := s.Get("f1")
	if got.AccessCount != 3+n {
		t.Fatalf("access count = %d, want %d", got.AccessCount, 3+n)
	}
	if got.LastAccessed == nil || !got.LastAccessed.Equal(now) {
		t.Fatalf("last accessed = %v", got.LastAccessed)
	}
	if s.TrackAccess("missing", now) {
		t.Fatalf("TrackAccess must be a no-op without a record")
	}
}

func TestFlushLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := snapshot.NewMemoryBackend()
	s := NewStore(backend, zerolog.Nop())
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.Put("f1", model.FileMetadata{
		Category:       "Recipes",
		Tags:           []string{"a", "b"},
		Description:    "unusual category",
		Extension:      "md",
		ClassifiedByAI: true,
		AccessCount:    2,
		CreatedAt:      created,
	})
	s.Put("f2", model.FileMetadata{Category: model.CategoryOther})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	loaded := NewStore(backend, zerolog.Nop())
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("len = %d", loaded.Len())
	}
	got, _ := loaded.Get("f1")
	if got.Category != "Recipes" || !got.ClassifiedByAI || got.AccessCount != 2 || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected reload: %+v", got)
	}
	if f2, _ := loaded.Get("f2"); f2.Tags == nil {
		t.Fatalf("nil tags should load as an empty set")
	}
}

func TestLoadFailureLeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	backend := snapshot.NewMemoryBackend()
	if err := backend.Write(ctx, snapshot.CollectionMetadata, []byte("{not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := NewStore(backend, zerolog.Nop())
	s.Put("stale", model.FileMetadata{})
	if err := s.Load(ctx); err == nil {
		t.Fatalf("expected decode error")
	}
	if s.Len() != 0 {
		t.Fatalf("failed load must leave the store empty, len=%d", s.Len())
	}
}

func TestFlushFailureKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := snapshot.NewMemoryBackend()
	s := NewStore(backend, zerolog.Nop())
	s.Put("f1", model.FileMetadata{Category: model.CategoryCode})
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	backend.FailWrites = true
	s.Put("f2", model.FileMetadata{Category: model.CategoryBooks})
	if err := s.Flush(ctx); err == nil {
		t.Fatalf("expected flush error")
	}
	if _, ok := s.Get("f2"); !ok {
		t.Fatalf("in-memory state must survive a failed flush")
	}

	backend.FailWrites = false
	loaded := NewStore(backend, zerolog.Nop())
	if err := loaded.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("durable copy should be the earlier snapshot, len=%d", loaded.Len())
	}
}
