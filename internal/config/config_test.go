package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunker.Type != "section" || cfg.Chunker.MaxLength != 800 || cfg.Chunker.Overlap != 100 {
		t.Errorf("unexpected chunker defaults: %+v", cfg.Chunker)
	}
	if cfg.LLM.Type != "openai" || cfg.LLM.Model != "llama-3.3-70b-versatile" || cfg.LLM.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", cfg.LLM.Temperature)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Retrieval.TopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_PlainChunkerDefaults(t *testing.T) {
	path := writeConfig(t, "chunker:\n  type: plain\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunker.MaxLength != 1000 || cfg.Chunker.Overlap != 200 {
		t.Errorf("expected 1000/200 for plain chunker, got %d/%d", cfg.Chunker.MaxLength, cfg.Chunker.Overlap)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"data_dir: policies",
		"chunker:",
		"  max_length: 500",
		"  overlap: 0",
		"llm:",
		"  type: anthropic",
		"retrieval:",
		"  top_k: 8",
	}, "\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir != "policies" || cfg.IndexDir != "policy_index" {
		t.Errorf("unexpected dirs: %q %q", cfg.DataDir, cfg.IndexDir)
	}
	if cfg.Chunker.MaxLength != 500 || cfg.Chunker.Overlap != 0 {
		t.Errorf("explicit sizes overwritten: %+v", cfg.Chunker)
	}
	if cfg.LLM.APIKeyEnv != "ANTHROPIC_API_KEY" || cfg.LLM.BaseURL != "https://api.anthropic.com/v1" {
		t.Errorf("unexpected anthropic defaults: %+v", cfg.LLM)
	}
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("expected top_k 8, got %d", cfg.Retrieval.TopK)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "chunker: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Chunker.MaxLength = 640
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Chunker.MaxLength != 640 {
		t.Errorf("expected 640, got %d", got.Chunker.MaxLength)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errSub string
	}{
		{"overlap too large", func(c *AppConfig) { c.Chunker.Overlap = c.Chunker.MaxLength }, "chunker.overlap"},
		{"unknown llm", func(c *AppConfig) { c.LLM.Type = "oracle" }, "unknown llm"},
		{"qdrant without url", func(c *AppConfig) { c.VectorStore = VectorStoreConfig{Type: "qdrant"} }, "qdrant.url"},
		{"empty data dir", func(c *AppConfig) { c.DataDir = "" }, "data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("expected error containing %q, got %v", tt.errSub, err)
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
