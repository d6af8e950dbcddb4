// Package api exposes FileShelf over HTTP: uploads, signed downloads and the
// per-user recommendation, similarity and browsing views.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/config"
	"github.com/dharsanguruparan/FileShelf/internal/metadata"
	"github.com/dharsanguruparan/FileShelf/internal/model"
	"github.com/dharsanguruparan/FileShelf/internal/preference"
	"github.com/dharsanguruparan/FileShelf/internal/processing"
	"github.com/dharsanguruparan/FileShelf/internal/recommend"
	"github.com/dharsanguruparan/FileShelf/internal/signing"
	"github.com/dharsanguruparan/FileShelf/internal/storage"
)

// UserHeader identifies the caller.
const UserHeader = "X-User-ID"

// Dispatcher accepts classification jobs.
type Dispatcher interface {
	Enqueue(ctx context.Context, job processing.Job) error
}

// Deps are the collaborators of the API.
type Deps struct {
	Catalog     *storage.MemoryStore
	Blobs       storage.BlobStore
	Metadata    *metadata.Store
	Preferences *preference.Tracker
	Engine      *recommend.Engine
	Signer      *signing.Signer
	Jobs        Dispatcher
}

// Server exposes HTTP endpoints for uploads and recommendations.
type Server struct {
	cfg    *config.Config
	deps   Deps
	logger zerolog.Logger
}

// New constructs a Server.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", s.handleStats)

	r.Post("/files", s.handleUpload)
	r.Get("/files/{id}", s.handleFile)
	r.Get("/files/{id}/link", s.handleLink)
	r.Get("/files/{id}/similar", s.handleSimilar)
	r.Get("/download", s.handleDownload)

	r.Route("/me", func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/recommendations", s.handleRecommendations)
		r.Get("/files", s.handleMyFiles)
		r.Get("/categories/{category}", s.handleBrowse)
		r.Post("/interests", s.handleInterest)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handleSetPreferences)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	storage.Stats
	Users      int `json:"users"`
	Classified int `json:"classified"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statsResponse{
		Stats:      s.deps.Catalog.Stats(),
		Users:      s.deps.Preferences.Len(),
		Classified: s.deps.Metadata.Len(),
	})
}

// fileView is how a catalog entry is rendered in lists.
type fileView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Kind     model.FileKind `json:"kind"`
	Size     int64          `json:"size"`
	Category model.Category `json:"category,omitempty"`
	Link     string         `json:"link"`
}

func (s *Server) view(rec model.FileRecord) fileView {
	v := fileView{
		ID:   rec.ID,
		Name: rec.Name,
		Kind: rec.Kind,
		Size: rec.Size,
		Link: s.deps.Signer.Link(s.cfg.PublicURL, rec.ID, s.cfg.SignedURLTTL).URL,
	}
	if meta, ok := s.deps.Metadata.Get(rec.ID); ok {
		v.Category = meta.Category
	}
	return v
}

// views renders ids in order, skipping any that left the catalog meanwhile.
func (s *Server) views(ids []string) []fileView {
	out := make([]fileView, 0, len(ids))
	for _, id := range ids {
		rec, err := s.deps.Catalog.Get(id)
		if err != nil {
			continue
		}
		out = append(out, s.view(*rec))
	}
	return out
}

func catalogIDs(records []model.FileRecord) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// countParam reads ?count=, falling back to def for missing or invalid values.
func countParam(r *http.Request, def int) int {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 100)
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			respondError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey{}).(string)
	return user
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	// Headers must be set before WriteHeader.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,"+UserHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
