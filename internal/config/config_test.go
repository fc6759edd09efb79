package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) != 8 {
		t.Errorf("expected 8 feeds, got %d", len(cfg.Sources.Feeds))
	}
	for _, f := range cfg.Sources.Feeds {
		if f.Tag == "" || f.URL == "" {
			t.Errorf("feed missing tag or url: %+v", f)
		}
	}

	if len(cfg.Sources.Proxies) != 3 || cfg.Sources.Proxies[0] != "" {
		t.Errorf("expected direct fetch first among 3 proxies, got %q", cfg.Sources.Proxies)
	}

	if cfg.Sources.FeedTimeout != 5*time.Second {
		t.Errorf("expected feed_timeout 5s, got %v", cfg.Sources.FeedTimeout)
	}

	if len(cfg.Summarization.Groq.APIKeyEnvs) != 3 {
		t.Errorf("expected 3 groq key variables, got %d", len(cfg.Summarization.Groq.APIKeyEnvs))
	}

	if cfg.Summarization.MinInterval != 3*time.Second {
		t.Errorf("expected min_interval 3s, got %v", cfg.Summarization.MinInterval)
	}

	if cfg.Sources.APIs.WorldNews.Country != "in" {
		t.Errorf("expected country 'in', got %q", cfg.Sources.APIs.WorldNews.Country)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
summarization:
  groq:
    model: llama-3.3-70b-versatile
  min_interval: 500ms
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Summarization.Groq.Model != "llama-3.3-70b-versatile" {
		t.Errorf("expected overridden model, got %q", cfg.Summarization.Groq.Model)
	}
	if cfg.Summarization.MinInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.Summarization.MinInterval)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Summarization.Groq.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("expected default groq base_url, got %q", cfg.Summarization.Groq.BaseURL)
	}
	if cfg.Sources.APIs.GNews.APIKeyEnv != "GNEWS_API_KEY" {
		t.Errorf("expected default gnews key env, got %q", cfg.Sources.APIs.GNews.APIKeyEnv)
	}
	if cfg.PDF.MaxSizeMB != 50 {
		t.Errorf("expected default pdf limit, got %d", cfg.PDF.MaxSizeMB)
	}
}

func TestParseInvalidDuration(t *testing.T) {
	if _, err := parse([]byte("sources:\n  feed_timeout: soon\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestKeysFromEnvironment(t *testing.T) {
	t.Setenv("EB_TEST_KEY_1", "first")
	t.Setenv("EB_TEST_KEY_2", "")

	p := ChatProvider{APIKeyEnvs: []string{"EB_TEST_KEY_1", "EB_TEST_KEY_2"}}
	keys := p.Keys()
	if len(keys) != 2 || keys[0] != "first" || keys[1] != "" {
		t.Errorf("unexpected keys %q", keys)
	}

	t.Setenv("EB_TEST_API", "  secret ")
	if got := (APIConfig{APIKeyEnv: "EB_TEST_API"}).Key(); got != "secret" {
		t.Errorf("expected trimmed key, got %q", got)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
