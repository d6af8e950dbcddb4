package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/FileShelf/internal/model"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeCapability struct {
	mu     sync.Mutex
	calls  int
	result Result
	err    error
	block  bool
}

func (f *fakeCapability) Classify(ctx context.Context, _ Descriptor, _ *Content) (Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeCapability) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestHeuristic(t *testing.T) {
	cases := []struct {
		name     string
		kind     model.FileKind
		category model.Category
		ext      string
	}{
		{"report.pdf", model.KindDocument, model.CategoryDocuments, "pdf"},
		{"IMG_0001.jpg", model.KindPhoto, model.CategoryImages, "jpg"},
		{"clip.bin", model.KindVideo, model.CategoryVideos, "bin"},
		{"song", model.KindAudio, model.CategoryAudio, ""},
		{"backup.tar.gz", model.KindDocument, model.CategoryArchives, "gz"},
		{"Main.GO", model.KindDocument, model.CategoryCode, "go"},
		{"deck.pptx", model.KindDocument, model.CategoryPresentations, "pptx"},
		{"budget.csv", model.KindDocument, model.CategorySpreadsheets, "csv"},
		{"novel.epub", model.KindDocument, model.CategoryBooks, "epub"},
		{"photo.png", model.KindDocument, model.CategoryImages, "png"},
		{"README", model.KindDocument, model.CategoryOther, ""},
		{"data.xyz", model.KindDocument, model.CategoryOther, "xyz"},
		{"sticker.webp", model.FileKind("sticker"), model.CategoryOther, "webp"},
	}
	for _, tc := range cases {
		got := Heuristic(Descriptor{Name: tc.name, Kind: tc.kind}, fixedNow)
		if got.Category != tc.category || got.Extension != tc.ext {
			t.Errorf("%s/%s: got %s/%q, want %s/%q", tc.name, tc.kind, got.Category, got.Extension, tc.category, tc.ext)
		}
		if got.ClassifiedByAI || got.Tags == nil || len(got.Tags) != 0 || got.Description != "" {
			t.Errorf("%s: heuristic record should be bare: %+v", tc.name, got)
		}
		if got.AccessCount != 0 || got.LastAccessed != nil || !got.CreatedAt.Equal(fixedNow) {
			t.Errorf("%s: unexpected bookkeeping: %+v", tc.name, got)
		}
	}
}

func TestClassifyWithoutCapabilityUsesHeuristic(t *testing.T) {
	c := New(nil, Options{Now: clock}, zerolog.Nop())
	if c.AIEnabled() {
		t.Fatalf("AI should be disabled")
	}
	got := c.Classify(context.Background(), Descriptor{Name: "report.pdf", Kind: model.KindDocument}, nil)
	if got.Category != model.CategoryDocuments || got.ClassifiedByAI {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestClassifyWithCapability(t *testing.T) {
	fake := &fakeCapability{result: Result{
		Category:    "Code",
		Tags:        []string{"go", "server", "http", "api", "json", "extra", "more"},
		Description: " An HTTP handler. ",
	}}
	c := New(fake, Options{Now: clock}, zerolog.Nop())
	got := c.Classify(context.Background(), Descriptor{Name: "main.go", Kind: model.KindDocument}, &Content{Text: "package main"})
	if !got.ClassifiedByAI || got.Category != model.CategoryCode {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(got.Tags) != model.MaxTags || got.Tags[4] != "json" {
		t.Fatalf("tags must be clamped to the first %d: %v", model.MaxTags, got.Tags)
	}
	if got.Description != "An HTTP handler." || got.Extension != "go" {
		t.Fatalf("unexpected description/extension: %+v", got)
	}
}

func TestClassifyCategoryEdgeCases(t *testing.T) {
	fake := &fakeCapability{result: Result{Category: ""}}
	c := New(fake, Options{Now: clock}, zerolog.Nop())
	got := c.Classify(context.Background(), Descriptor{Name: "x.txt", Kind: model.KindDocument}, nil)
	if got.Category != model.CategoryOther || got.Tags == nil {
		t.Fatalf("missing category should become Other with empty tags: %+v", got)
	}

	fake.result = Result{Category: "Recipes", Tags: []string{"food"}}
	got = c.Classify(context.Background(), Descriptor{Name: "pie.txt", Kind: model.KindDocument}, nil)
	if got.Category != "Recipes" || !got.ClassifiedByAI {
		t.Fatalf("unlisted category should be kept verbatim: %+v", got)
	}
}

func TestClassifyFallsBackOnError(t *testing.T) {
	fake := &fakeCapability{err: errors.New("boom")}
	c := New(fake, Options{Now: clock}, zerolog.Nop())
	got := c.Classify(context.Background(), Descriptor{Name: "song.mp3", Kind: model.KindDocument}, nil)
	if got.ClassifiedByAI || got.Category != model.CategoryAudio {
		t.Fatalf("expected heuristic fallback, got %+v", got)
	}
}

func TestClassifyFallsBackOnTimeout(t *testing.T) {
	fake := &fakeCapability{block: true}
	c := New(fake, Options{Now: clock, Timeout: 20 * time.Millisecond}, zerolog.Nop())
	start := time.Now()
	got := c.Classify(context.Background(), Descriptor{Name: "a.zip", Kind: model.KindDocument}, nil)
	if got.ClassifiedByAI || got.Category != model.CategoryArchives {
		t.Fatalf("expected heuristic fallback, got %+v", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout was not enforced")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeCapability{err: errors.New("unavailable")}
	c := New(fake, Options{Now: clock}, zerolog.Nop())
	desc := Descriptor{Name: "a.txt", Kind: model.KindDocument}
	for i := 0; i < 5; i++ {
		c.Classify(context.Background(), desc, nil)
	}
	if fake.Calls() != 5 {
		t.Fatalf("calls = %d, want 5", fake.Calls())
	}
	got := c.Classify(context.Background(), desc, nil)
	if fake.Calls() != 5 {
		t.Fatalf("open circuit must not reach the capability, calls = %d", fake.Calls())
	}
	if got.ClassifiedByAI {
		t.Fatalf("expected heuristic while the circuit is open")
	}
}

func TestCancelledCallerDoesNotTripBreaker(t *testing.T) {
	fake := &fakeCapability{result: Result{Category: "Code"}}
	c := New(fake, Options{Now: clock}, zerolog.Nop())
	desc := Descriptor{Name: "main.go", Kind: model.KindDocument}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := c.Classify(ctx, desc, nil)
	if got.ClassifiedByAI || got.Category != model.CategoryCode {
		t.Fatalf("cancelled caller should get the heuristic record, got %+v", got)
	}
	if fake.Calls() != 0 {
		t.Fatalf("cancelled caller must not reach the capability, calls = %d", fake.Calls())
	}

	// Cancellation surfacing from inside the call is not a capability failure.
	fake.err = context.Canceled
	for i := 0; i < 6; i++ {
		c.Classify(context.Background(), desc, nil)
	}
	fake.err = nil
	if got := c.Classify(context.Background(), desc, nil); !got.ClassifiedByAI {
		t.Fatalf("circuit should still be closed after cancellations")
	}
	if fake.Calls() != 7 {
		t.Fatalf("calls = %d, want 7", fake.Calls())
	}
}

func TestRateLimiterFallsBack(t *testing.T) {
	fake := &fakeCapability{result: Result{Category: "Documents"}}
	c := New(fake, Options{Now: clock, RatePerSec: 0.001, Burst: 1}, zerolog.Nop())
	desc := Descriptor{Name: "a.txt", Kind: model.KindDocument}
	if got := c.Classify(context.Background(), desc, nil); !got.ClassifiedByAI {
		t.Fatalf("first call should be admitted")
	}
	if got := c.Classify(context.Background(), desc, nil); got.ClassifiedByAI {
		t.Fatalf("second call should be rate limited")
	}
	if fake.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", fake.Calls())
	}
}

func TestFallbackReason(t *testing.T) {
	cases := map[error]string{
		ErrRateLimited:           "rate_limited",
		context.Canceled:         "canceled",
		context.DeadlineExceeded: "timeout",
		ErrMalformed:             "malformed",
		errors.New("x"):          "error",
	}
	for err, want := range cases {
		if got := fallbackReason(err); got != want {
			t.Errorf("fallbackReason(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(model.FileMetadata{Category: model.CategoryImages, Tags: []string{"beach", "sun"}, Extension: "jpg", ClassifiedByAI: true})
	if !strings.Contains(got, "Images [beach,sun]") || !strings.HasSuffix(got, "(ai)") {
		t.Fatalf("unexpected description %q", got)
	}
}
