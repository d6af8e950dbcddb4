package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address)
	}
	if cfg.ProcessingPool != 1 {
		t.Fatalf("expected a single classification worker, got %d", cfg.ProcessingPool)
	}
	if cfg.Queue.Backend != "memory" || cfg.Blob.Backend != "disk" || cfg.State.Backend != "file" {
		t.Fatalf("unexpected backends: %+v %+v %+v", cfg.Queue, cfg.Blob, cfg.State)
	}
	if cfg.SaveInterval != 5*time.Minute {
		t.Fatalf("unexpected save interval %s", cfg.SaveInterval)
	}
	if cfg.SigningSecret == "" {
		t.Fatalf("expected a generated signing secret")
	}
	if cfg.AI.Enabled() {
		t.Fatalf("AI must be disabled without an api key")
	}
	if cfg.Recommend.Count != 8 || cfg.Recommend.SimilarCount != 2 {
		t.Fatalf("unexpected recommend defaults: %+v", cfg.Recommend)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FILESHELF_ADDRESS", ":9090")
	t.Setenv("FILESHELF_WORKERS", "-3")
	t.Setenv("FILESHELF_AI_API_KEY", "sk-test")
	t.Setenv("FILESHELF_AI_TIMEOUT", "2s")
	t.Setenv("FILESHELF_SIGNING_SECRET", "topsecret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != ":9090" {
		t.Fatalf("env override ignored: %q", cfg.Address)
	}
	if cfg.ProcessingPool != 1 {
		t.Fatalf("negative worker count should clamp to default, got %d", cfg.ProcessingPool)
	}
	if !cfg.AI.Enabled() || cfg.AI.Timeout != 2*time.Second {
		t.Fatalf("unexpected ai config: %+v", cfg.AI)
	}
	if cfg.SigningSecret != "topsecret" {
		t.Fatalf("unexpected secret %q", cfg.SigningSecret)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fileshelf.yaml")
	body := []byte("state:\n  backend: s3\nrecommend:\n  count: 3\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.State.Backend != "s3" || cfg.Recommend.Count != 3 {
		t.Fatalf("file values ignored: %+v %+v", cfg.State, cfg.Recommend)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("FILESHELF_QUEUE_BACKEND", "kafka")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected unknown queue backend to be rejected")
	}
}

func TestLoadPostgresNeedsURL(t *testing.T) {
	t.Setenv("FILESHELF_STATE_BACKEND", "postgres")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected missing database url to be rejected")
	}
}
