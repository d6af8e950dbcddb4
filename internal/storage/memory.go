// Package storage holds the file catalog and the blob stores. The catalog is
// the ordered, read-only view of stored files that the metadata core ranks;
// blobs are the uploaded bytes themselves.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dharsanguruparan/FileShelf/internal/model"
	"github.com/dharsanguruparan/FileShelf/internal/snapshot"
)

var (
	// ErrNotFound is exported so callers elsewhere can compare errors using
	// errors.Is.
	ErrNotFound = errors.New("file not found")
)

// MemoryStore is the in-memory catalog. It remembers insertion order, which
// is the catalog iteration order every ranking function tie-breaks on.
type MemoryStore struct {
	mu      sync.RWMutex
	files   map[string]*model.FileRecord
	order   []string
	backend snapshot.Backend
	writeMu sync.Mutex
}

// NewMemoryStore constructs a MemoryStore persisted through backend. A nil
// backend keeps the catalog purely in memory.
func NewMemoryStore(backend snapshot.Backend) *MemoryStore {
	return &MemoryStore{
		files:   make(map[string]*model.FileRecord),
		backend: backend,
	}
}

// Save inserts or replaces a record. Replacing keeps the original position.
func (m *MemoryStore) Save(record *model.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	cp := *record
	if _, ok := m.files[record.ID]; !ok {
		m.order = append(m.order, record.ID)
	}
	m.files[record.ID] = &cp
}

// Get returns a record copy.
func (m *MemoryStore) Get(id string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns every record in catalog order.
func (m *MemoryStore) List() []model.FileRecord {
	return m.filter(func(*model.FileRecord) bool { return true })
}

// ListByUploader returns the records uploaded by userID in catalog order.
func (m *MemoryStore) ListByUploader(userID string) []model.FileRecord {
	return m.filter(func(r *model.FileRecord) bool { return r.UploaderID == userID })
}

func (m *MemoryStore) filter(keep func(*model.FileRecord) bool) []model.FileRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.FileRecord, 0, len(m.order))
	for _, id := range m.order {
		if rec := m.files[id]; keep(rec) {
			out = append(out, *rec)
		}
	}
	return out
}

// Stats summarises the catalog.
type Stats struct {
	Files      int   `json:"files"`
	Uploaders  int   `json:"uploaders"`
	TotalBytes int64 `json:"total_bytes"`
}

// Stats returns catalog totals.
func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uploaders := make(map[string]struct{})
	var st Stats
	for _, rec := range m.files {
		st.Files++
		st.TotalBytes += rec.Size
		uploaders[rec.UploaderID] = struct{}{}
	}
	st.Uploaders = len(uploaders)
	return st
}

// Load replaces the catalog with the persisted one.
func (m *MemoryStore) Load(ctx context.Context) error {
	if m.backend == nil {
		return nil
	}
	var records []model.FileRecord
	if err := snapshot.Load(ctx, m.backend, snapshot.CollectionFiles, &records); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]*model.FileRecord, len(records))
	m.order = m.order[:0]
	for i := range records {
		rec := records[i]
		if _, dup := m.files[rec.ID]; !dup {
			m.order = append(m.order, rec.ID)
		}
		m.files[rec.ID] = &rec
	}
	return nil
}

// Flush writes the whole catalog, in order, through the backend.
func (m *MemoryStore) Flush(ctx context.Context) error {
	if m.backend == nil {
		return nil
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return snapshot.Save(ctx, m.backend, snapshot.CollectionFiles, m.List())
}
