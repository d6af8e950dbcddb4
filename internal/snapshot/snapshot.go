// Package snapshot persists whole keyed-record collections (the catalog, file
// metadata, user preferences) as versioned, indented JSON documents. Backends
// only move bytes; the envelope format lives here.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Version is the current envelope schema version.
const Version = 1

// Collection names used by FileShelf.
const (
	CollectionFiles       = "files"
	CollectionMetadata    = "file_metadata"
	CollectionPreferences = "user_preferences"
)

var (
	// ErrNotFound is returned by backends when a collection has never been written.
	ErrNotFound = errors.New("snapshot not found")
	// ErrVersion is returned when a document carries an unsupported version.
	ErrVersion = errors.New("unsupported snapshot version")
)

// Backend stores one opaque document per collection name. Write replaces the
// previous document as a whole.
type Backend interface {
	Read(ctx context.Context, collection string) ([]byte, error)
	Write(ctx context.Context, collection string, data []byte) error
}

type envelope struct {
	Version    int             `json:"version"`
	Collection string          `json:"collection"`
	SavedAt    time.Time       `json:"saved_at"`
	Records    json.RawMessage `json:"records"`
}

// Encode wraps records in a versioned envelope.
func Encode(collection string, records any) ([]byte, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s records: %w", collection, err)
	}
	data, err := json.MarshalIndent(envelope{
		Version:    Version,
		Collection: collection,
		SavedAt:    time.Now().UTC(),
		Records:    raw,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", collection, err)
	}
	return data, nil
}

// Decode unwraps an envelope produced by Encode into out.
func Decode(collection string, data []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s envelope: %w", collection, err)
	}
	if env.Version != Version {
		return fmt.Errorf("%s: %w %d", collection, ErrVersion, env.Version)
	}
	if env.Collection != "" && env.Collection != collection {
		return fmt.Errorf("decode %s: document holds collection %q", collection, env.Collection)
	}
	if len(env.Records) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Records, out); err != nil {
		return fmt.Errorf("decode %s records: %w", collection, err)
	}
	return nil
}

// Save encodes records and writes them through b.
func Save(ctx context.Context, b Backend, collection string, records any) error {
	data, err := Encode(collection, records)
	if err != nil {
		return err
	}
	return b.Write(ctx, collection, data)
}

// Load reads a collection through b into out. A collection that was never
// written is not an error; out is left untouched.
func Load(ctx context.Context, b Backend, collection string, out any) error {
	data, err := b.Read(ctx, collection)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return Decode(collection, data, out)
}
