package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps each collection as <dir>/<collection>.json.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(collection string) string {
	return filepath.Join(b.dir, collection+".json")
}

// Read returns the stored document or ErrNotFound.
func (b *FileBackend) Read(_ context.Context, collection string) ([]byte, error) {
	data, err := os.ReadFile(b.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return data, nil
}

// Write replaces the document via a temp file and rename, so a failed write
// leaves the previous document in place.
func (b *FileBackend) Write(_ context.Context, collection string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	tmp, err := os.CreateTemp(b.dir, collection+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", collection, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", collection, err)
	}
	if err := os.Rename(tmp.Name(), b.path(collection)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", collection, err)
	}
	return nil
}

// MemoryBackend keeps documents in memory. The CLI uses it for dry runs and
// tests use it to inspect what was persisted.
type MemoryBackend struct {
	mu     sync.Mutex
	docs   map[string][]byte
	Writes int
	// FailWrites makes every Write return an error.
	FailWrites bool
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

// Read returns a copy of the stored document.
func (b *MemoryBackend) Read(_ context.Context, collection string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.docs[collection]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data.
func (b *MemoryBackend) Write(_ context.Context, collection string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrites {
		return errors.New("memory backend: write disabled")
	}
	b.docs[collection] = append([]byte(nil), data...)
	b.Writes++
	return nil
}
