package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/dharsanguruparan/FileShelf/internal/model"
)

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	count := countParam(r, s.cfg.Recommend.Count)
	ids := s.deps.Engine.Recommend(user, catalogIDs(s.deps.Catalog.List()), count)
	respondJSON(w, http.StatusOK, map[string]any{"files": s.views(ids)})
}

type categoryView struct {
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
	Files    []fileView     `json:"files"`
}

func (s *Server) handleMyFiles(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	groups := s.deps.Engine.Categories(catalogIDs(s.deps.Catalog.ListByUploader(user)))
	out := make([]categoryView, 0, len(groups))
	for _, g := range groups {
		out = append(out, categoryView{Category: g.Category, Count: len(g.FileIDs), Files: s.views(g.FileIDs)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// handleBrowse lists the caller's files in one category. Browsing counts as
// explicit interest in that category.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	ids := catalogIDs(s.deps.Catalog.ListByUploader(user))
	category, matched, ok := s.deps.Engine.Browse(ids, chi.URLParam(r, "category"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown category")
		return
	}
	s.deps.Preferences.RecordInterest(r.Context(), user, category, nil)
	respondJSON(w, http.StatusOK, categoryView{Category: category, Count: len(matched), Files: s.views(matched)})
}

type interestRequest struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	var req interestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	var category model.Category
	if name := strings.TrimSpace(req.Category); name != "" {
		c, ok := model.LookupCategory(name)
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown category")
			return
		}
		category = c
	}
	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if category == "" && len(tags) == 0 {
		respondError(w, http.StatusBadRequest, "category or tags required")
		return
	}
	user := userFrom(r.Context())
	s.deps.Preferences.RecordInterest(r.Context(), user, category, tags)
	s.respondPreferences(w, user)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	s.respondPreferences(w, userFrom(r.Context()))
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&values); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(values) == 0 {
		respondError(w, http.StatusBadRequest, "no preferences given")
		return
	}
	user := userFrom(r.Context())
	s.deps.Preferences.SetExplicit(r.Context(), user, values)
	s.respondPreferences(w, user)
}

func (s *Server) respondPreferences(w http.ResponseWriter, user string) {
	pref, ok := s.deps.Preferences.Get(user)
	if !ok {
		pref = model.NewUserPreference()
	}
	respondJSON(w, http.StatusOK, pref)
}
