// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"
)

// FileKind is the transport-level type of an upload. It mirrors how the file
// arrived (as a photo, a video, ...) rather than what it contains.
type FileKind string

const (
	KindDocument FileKind = "document"
	KindPhoto    FileKind = "photo"
	KindVideo    FileKind = "video"
	KindAudio    FileKind = "audio"
)

// ParseKind maps a free-form kind string onto a FileKind, defaulting to
// KindDocument for anything it does not recognise.
func ParseKind(s string) FileKind {
	switch FileKind(s) {
	case KindPhoto, KindVideo, KindAudio:
		return FileKind(s)
	default:
		return KindDocument
	}
}

// FileRecord is one catalog entry: the read-only view of a stored blob that the
// metadata core consumes. Struct tags such as `json:"id"` control the field
// names used when the catalog is written to disk or returned over HTTP.
type FileRecord struct {
	ID          string    `json:"id"`
	UploaderID  string    `json:"uploader_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Kind        FileKind  `json:"kind"`
	ContentType string    `json:"content_type"`
	// ObjectKey locates the blob in the blob store and is never exposed to clients.
	ObjectKey string    `json:"object_key"`
	CreatedAt time.Time `json:"created_at"`
}
