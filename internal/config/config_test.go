package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vigil/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Segmenter.WindowSeconds != 300 {
		t.Fatalf("unexpected default window: %d", cfg.Segmenter.WindowSeconds)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[segmenter]
window_seconds = 120
overlap_seconds = 15

[analysis]
workers = 4
inference_slots = 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Segmenter.WindowSeconds != 120 || cfg.Segmenter.OverlapSeconds != 15 {
		t.Fatalf("unexpected segmenter config: %+v", cfg.Segmenter)
	}
	if cfg.Analysis.Workers != 4 || cfg.Analysis.InferenceSlots != 2 {
		t.Fatalf("unexpected analysis config: %+v", cfg.Analysis)
	}
	// Untouched sections keep defaults.
	if cfg.Retrieval.TopK != 4 {
		t.Fatalf("unexpected top_k: %d", cfg.Retrieval.TopK)
	}
}

func TestValidateRejectsOverlapAtLeastWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Segmenter.WindowSeconds = 60
	cfg.Segmenter.OverlapSeconds = 60
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "overlap_seconds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsRemoteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.BaseURL = "https://api.example.com/v1/chat/completions"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected rejection of non-local llm base url")
	}

	cfg = config.Default()
	cfg.Embeddings.BaseURL = "https://embeddings.example.com/v1"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected rejection of non-local embeddings base url")
	}
}

func TestValidateAcceptsPrivateHosts(t *testing.T) {
	for _, host := range []string{
		"http://localhost:8080/v1/chat/completions",
		"http://192.168.1.20:8080/v1/chat/completions",
		"http://llama-stack:5001/v1/chat/completions",
	} {
		cfg := config.Default()
		cfg.LLM.BaseURL = host
		if err := cfg.Validate(); err != nil {
			t.Fatalf("expected %q to validate: %v", host, err)
		}
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.IndexPath = filepath.Join(base, "index", "manual_index.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.IndexPath)} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
}
