package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dharsanguruparan/FileShelf/internal/model"
	"github.com/dharsanguruparan/FileShelf/internal/processing"
	"github.com/dharsanguruparan/FileShelf/internal/signing"
	"github.com/dharsanguruparan/FileShelf/internal/storage"
)

type uploadResponse struct {
	ID   string       `json:"id"`
	Link signing.Link `json:"link"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := r.Header.Get(UserHeader)
	if user == "" {
		respondError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64*1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	tmp, kind, err := s.readUpload(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmp.path)
	defer tmp.f.Close()

	if kind == "" {
		kind = kindFromContentType(tmp.contentType)
	}
	id := uuid.NewString()
	record := &model.FileRecord{
		ID:          id,
		UploaderID:  user,
		Name:        tmp.filename,
		Size:        tmp.size,
		Kind:        model.ParseKind(kind),
		ContentType: tmp.contentType,
		ObjectKey:   fmt.Sprintf("uploads/%s/%s", id, path.Base(tmp.filename)),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.uploadToStorage(ctx, record.ObjectKey, tmp); err != nil {
		s.logger.Error().Err(err).Str("file_id", id).Msg("upload to storage failed")
		respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	s.deps.Catalog.Save(record)
	if err := s.deps.Catalog.Flush(ctx); err != nil {
		s.logger.Error().Err(err).Msg("save catalog")
	}
	// The file is stored either way; an unqueued file is picked up by the
	// startup backfill.
	if err := s.deps.Jobs.Enqueue(ctx, processing.Job{FileID: id, UploaderID: user}); err != nil {
		s.logger.Warn().Err(err).Str("file_id", id).Msg("queue classification, deferring to backfill")
	}
	respondJSON(w, http.StatusAccepted, uploadResponse{
		ID:   id,
		Link: s.deps.Signer.Link(s.cfg.PublicURL, id, s.cfg.SignedURLTTL),
	})
}

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
}

// readUpload streams the "file" part to a temp file and collects the optional
// "kind" field, which may come before or after the file.
func (s *Server) readUpload(mr *multipart.Reader) (*tempUpload, string, error) {
	var (
		tmp  *tempUpload
		kind string
	)
	fail := func(err error) (*tempUpload, string, error) {
		if tmp != nil {
			tmp.f.Close()
			os.Remove(tmp.path)
		}
		return nil, "", err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read upload: %w", err))
		}
		switch part.FormName() {
		case "file":
			if tmp != nil {
				part.Close()
				continue
			}
			tmp, err = s.persistTemp(part)
			part.Close()
			if err != nil {
				return fail(err)
			}
		case "kind":
			value, err := io.ReadAll(io.LimitReader(part, 64))
			part.Close()
			if err != nil {
				return fail(fmt.Errorf("read kind: %w", err))
			}
			kind = strings.TrimSpace(string(value))
		default:
			part.Close()
		}
	}
	if tmp == nil {
		return nil, "", errors.New("missing file part")
	}
	return tmp, kind, nil
}

func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	tmpFile, err := os.CreateTemp("", "fileshelf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxFileSize {
				cleanup()
				return nil, fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize)
			}
			// Keep the first 512 bytes for content type sniffing.
			if len(sniff) < 512 {
				chunk := min(n, 512-len(sniff))
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				cleanup()
				return nil, fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			cleanup()
			return nil, fmt.Errorf("read file: %w", readErr)
		}
	}
	if written == 0 {
		cleanup()
		return nil, errors.New("empty file")
	}
	filename := part.FileName()
	if filename == "" {
		filename = "upload"
	}
	contentType := part.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(sniff)
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: contentType,
		filename:    filename,
	}, nil
}

func (s *Server) uploadToStorage(ctx context.Context, objectKey string, tmp *tempUpload) error {
	if _, err := tmp.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind temp file: %w", err)
	}
	return s.deps.Blobs.Put(ctx, objectKey, tmp.f, tmp.size, tmp.contentType)
}

// kindFromContentType guesses the transport kind when the client sent none.
func kindFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return string(model.KindPhoto)
	case strings.HasPrefix(contentType, "video/"):
		return string(model.KindVideo)
	case strings.HasPrefix(contentType, "audio/"):
		return string(model.KindAudio)
	default:
		return string(model.KindDocument)
	}
}

type fileResponse struct {
	*model.FileRecord
	// Shadows the embedded field; object keys stay internal.
	ObjectKey string              `json:"object_key,omitempty"`
	Metadata  *model.FileMetadata `json:"metadata,omitempty"`
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	resp := fileResponse{FileRecord: rec}
	if meta, ok := s.deps.Metadata.Get(rec.ID); ok {
		resp.Metadata = &meta
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Signer.Link(s.cfg.PublicURL, rec.ID, s.cfg.SignedURLTTL))
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	count := countParam(r, s.cfg.Recommend.SimilarCount)
	ids := s.deps.Engine.Similar(rec.ID, catalogIDs(s.deps.Catalog.List()), count)
	respondJSON(w, http.StatusOK, map[string]any{
		"file_id": rec.ID,
		"files":   s.views(ids),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, expires, signature := q.Get("file"), q.Get("expires"), q.Get("signature")
	if id == "" || expires == "" || signature == "" {
		respondError(w, http.StatusBadRequest, "missing parameters")
		return
	}
	if !s.deps.Signer.Validate(id, expires, signature) {
		respondError(w, http.StatusUnauthorized, "invalid or expired link")
		return
	}
	rec, ok := s.lookup(w, id)
	if !ok {
		return
	}
	blob, err := s.deps.Blobs.Open(r.Context(), rec.ObjectKey)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", id).Msg("open blob")
		respondError(w, http.StatusInternalServerError, "file unavailable")
		return
	}
	defer blob.Close()

	s.recordAccess(r.Context(), r.Header.Get(UserHeader), rec.ID)

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+strings.ReplaceAll(rec.Name, `"`, "")+"\"")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, blob); err != nil {
		s.logger.Warn().Err(err).Str("file_id", id).Msg("stream blob")
	}
}

// recordAccess counts a download against the file and, for a known caller,
// the caller's preferences.
func (s *Server) recordAccess(ctx context.Context, user, fileID string) {
	if !s.deps.Metadata.TrackAccess(fileID, time.Now()) {
		return
	}
	// Flush logs its own failures.
	_ = s.deps.Metadata.Flush(ctx)
	if user != "" {
		s.deps.Preferences.RecordAccess(ctx, user, fileID)
	}
}

func (s *Server) lookup(w http.ResponseWriter, id string) (*model.FileRecord, bool) {
	rec, err := s.deps.Catalog.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "file not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return nil, false
	}
	return rec, true
}
