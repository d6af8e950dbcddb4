package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/api"
	"github.com/dharsanguruparan/FileShelf/internal/config"
	"github.com/dharsanguruparan/FileShelf/internal/model"
	"github.com/dharsanguruparan/FileShelf/internal/processing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("FILESHELF_STATE_DIR", t.TempDir())
	t.Setenv("FILESHELF_BLOB_DIR", t.TempDir())
	t.Setenv("FILESHELF_ADDRESS", "127.0.0.1:0")
	t.Setenv("FILESHELF_AI_API_KEY", "")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Classifier.AIEnabled() {
		t.Fatalf("AI should be off without an api key")
	}
	rec := &model.FileRecord{ID: "f1", UploaderID: "u1", Name: "report.pdf", Kind: model.KindDocument, ObjectKey: "uploads/f1/report.pdf"}
	if err := a.Blobs.Put(ctx, rec.ObjectKey, strings.NewReader("%PDF-1.4"), 8, "application/pdf"); err != nil {
		t.Fatalf("put blob: %v", err)
	}
	a.Catalog.Save(rec)
	if err := a.Pipeline.Handle(ctx, processing.Job{FileID: "f1", UploaderID: "u1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	a.Preferences.SetExplicit(ctx, "u1", map[string]any{"lang": "en"})
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	a.Close()

	b, err := New(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if st := b.Catalog.Stats(); st.Files != 1 {
		t.Fatalf("catalog not restored: %+v", st)
	}
	meta, ok := b.Metadata.Get("f1")
	if !ok || meta.Category != model.CategoryDocuments || meta.Extension != "pdf" {
		t.Fatalf("metadata not restored: %+v", meta)
	}
	pref, ok := b.Preferences.Get("u1")
	if !ok || !pref.Recent("f1") || pref.ExplicitPreferences["lang"] != "en" {
		t.Fatalf("preferences not restored: %+v", pref)
	}
	if got := b.Engine.Recommend("someone-else", []string{"f1"}, 8); len(got) != 1 {
		t.Fatalf("engine not wired: %v", got)
	}
}

func TestRunSavesOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	a.Catalog.Save(&model.FileRecord{ID: "f1", Name: "x.txt"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return")
	}

	b, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if _, err := b.Catalog.Get("f1"); err != nil {
		t.Fatalf("catalog should be saved at shutdown: %v", err)
	}
}

func TestNewRejectsUnreachablePostgres(t *testing.T) {
	cfg := testConfig(t)
	cfg.State.Backend = "postgres"
	cfg.State.DatabaseURL = "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := New(ctx, cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected connection error")
	}
}

// jobsFunc adapts a function to api.Dispatcher.
type jobsFunc func(ctx context.Context, job processing.Job) error

func (f jobsFunc) Enqueue(ctx context.Context, job processing.Job) error {
	return f(ctx, job)
}

func TestBackfillClassifiesUploadsThatWereNotQueued(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	down := jobsFunc(func(context.Context, processing.Job) error { return errors.New("redis down") })
	handler := api.New(a.Config, api.Deps{
		Catalog:     a.Catalog,
		Blobs:       a.Blobs,
		Metadata:    a.Metadata,
		Preferences: a.Preferences,
		Engine:      a.Engine,
		Signer:      a.Signer,
		Jobs:        down,
	}, zerolog.Nop()).Routes()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "main.go")
	_, _ = io.WriteString(fw, "package main\n")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.UserHeader, "u1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var up struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil || up.ID == "" {
		t.Fatalf("decode upload response %q: %v", rec.Body.String(), err)
	}
	if _, ok := a.Metadata.Get(up.ID); ok {
		t.Fatalf("nothing should be classified before the backfill")
	}

	inline := jobsFunc(a.Pipeline.Handle)
	if n := a.backfill(ctx, inline); n != 1 {
		t.Fatalf("backfill queued %d, want 1", n)
	}
	meta, ok := a.Metadata.Get(up.ID)
	if !ok || meta.Category != model.CategoryCode {
		t.Fatalf("file not classified by backfill: %+v", meta)
	}
	if pref, ok := a.Preferences.Get("u1"); !ok || !pref.Recent(up.ID) {
		t.Fatalf("uploader access not recorded: %+v", pref)
	}
	if n := a.backfill(ctx, inline); n != 0 {
		t.Fatalf("second backfill queued %d, want 0", n)
	}
}

func TestBackfillWaitsForQueueRoom(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	a.Catalog.Save(&model.FileRecord{ID: "f1", Name: "a.txt"})
	a.Catalog.Save(&model.FileRecord{ID: "f2", Name: "b.txt"})

	restore := backfillRetry
	backfillRetry = time.Millisecond
	defer func() { backfillRetry = restore }()

	var got []string
	full := 2
	jobs := jobsFunc(func(_ context.Context, job processing.Job) error {
		if full > 0 {
			full--
			return processing.ErrQueueFull
		}
		got = append(got, job.FileID)
		return nil
	})
	if n := a.backfill(ctx, jobs); n != 2 {
		t.Fatalf("backfill queued %d, want 2", n)
	}
	if len(got) != 2 || got[0] != "f1" || got[1] != "f2" {
		t.Fatalf("unexpected jobs %v", got)
	}
}
