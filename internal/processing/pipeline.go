package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/classify"
	"github.com/dharsanguruparan/FileShelf/internal/model"
)

// Job asks for one stored file to be classified. UploaderID, when set, gets
// the upload counted as an access.
type Job struct {
	FileID     string `json:"file_id"`
	UploaderID string `json:"uploader_id,omitempty"`
}

// Catalog looks up stored files.
type Catalog interface {
	Get(id string) (*model.FileRecord, error)
}

// BlobReader returns the first bytes of a stored blob.
type BlobReader interface {
	Head(ctx context.Context, key string, n int64) ([]byte, error)
}

// Classifier produces metadata for a file.
type Classifier interface {
	Classify(ctx context.Context, desc classify.Descriptor, content *classify.Content) model.FileMetadata
}

// MetadataWriter stores and persists classification records.
type MetadataWriter interface {
	Get(id string) (model.FileMetadata, bool)
	PutIfAbsent(id string, rec model.FileMetadata) bool
	Flush(ctx context.Context) error
}

// AccessRecorder is told about the uploader's implicit access.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, userID, fileID string)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Catalog      Catalog
	Blobs        BlobReader
	Classifier   Classifier
	Metadata     MetadataWriter
	Preferences  AccessRecorder
	ExcerptBytes int64
}

// Pipeline classifies one file end to end: read the head of the blob, build
// the classifier input, store the record and credit the uploader.
type Pipeline struct {
	deps   Deps
	logger zerolog.Logger
}

// NewPipeline returns a Pipeline.
func NewPipeline(deps Deps, logger zerolog.Logger) *Pipeline {
	return &Pipeline{deps: deps, logger: logger.With().Str("component", "processing").Logger()}
}

// Handle runs job. It only fails when the file is not in the catalog;
// classification itself always yields a record. A file that already has a
// record is left alone, so redelivered jobs neither reset its counters nor
// credit the uploader twice.
func (p *Pipeline) Handle(ctx context.Context, job Job) error {
	start := time.Now()
	rec, err := p.deps.Catalog.Get(job.FileID)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", job.FileID, err)
	}
	if _, ok := p.deps.Metadata.Get(rec.ID); ok {
		p.logger.Debug().Str("file_id", rec.ID).Msg("already classified, skipping")
		return nil
	}
	var content *classify.Content
	if p.deps.Blobs != nil && p.deps.ExcerptBytes > 0 {
		head, err := p.deps.Blobs.Head(ctx, rec.ObjectKey, p.deps.ExcerptBytes)
		if err != nil {
			p.logger.Warn().Err(err).Str("file_id", rec.ID).Msg("read blob head, classifying without content")
		} else {
			content = classify.BuildContent(rec.Name, rec.ContentType, head, int(p.deps.ExcerptBytes))
		}
	}
	meta := p.deps.Classifier.Classify(ctx, classify.Descriptor{
		Name: rec.Name,
		Kind: rec.Kind,
		Size: rec.Size,
	}, content)
	if !p.deps.Metadata.PutIfAbsent(rec.ID, meta) {
		p.logger.Debug().Str("file_id", rec.ID).Msg("classified concurrently, keeping existing record")
		return nil
	}
	if job.UploaderID != "" && p.deps.Preferences != nil {
		p.deps.Preferences.RecordAccess(ctx, job.UploaderID, rec.ID)
	}
	// A failed flush is logged by the store; the periodic save retries it.
	_ = p.deps.Metadata.Flush(ctx)
	p.logger.Info().
		Str("file_id", rec.ID).
		Str("category", string(meta.Category)).
		Bool("ai", meta.ClassifiedByAI).
		Dur("took", time.Since(start)).
		Msg("file classified")
	return nil
}
