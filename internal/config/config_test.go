package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.MaxDepth != 2 || cfg.Session.IncludeExternal {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if len(cfg.Session.URLPatterns) != 10 || cfg.Session.URLPatterns[0] != "*quest*" {
		t.Fatalf("unexpected url patterns: %v", cfg.Session.URLPatterns)
	}
	if cfg.Fetch.ScrollCount != 20 || cfg.Fetch.ScrollDelay != 500*time.Millisecond {
		t.Fatalf("unexpected scroll defaults: %+v", cfg.Fetch)
	}
	if cfg.Fetch.LoadMoreAttempts != 5 || cfg.Fetch.LoadMoreWait != 2*time.Second {
		t.Fatalf("unexpected load-more defaults: %+v", cfg.Fetch)
	}
	if cfg.Reducer.TableScoreThreshold != 6 || cfg.Reducer.MinTableRows != 2 || cfg.Reducer.ChunkSize != 4096 {
		t.Fatalf("unexpected reducer defaults: %+v", cfg.Reducer)
	}
	if cfg.Links.MaxLinks != 15 || cfg.Links.Query != DefaultLinkQuery {
		t.Fatalf("unexpected link defaults: %+v", cfg.Links)
	}
	if cfg.Enrich.Delay != time.Second || cfg.Enrich.PostWindow != 10 {
		t.Fatalf("unexpected enrich defaults: %+v", cfg.Enrich)
	}
	if cfg.Report.FollowerThreshold != 10000 || cfg.Report.EngagementThreshold != 100 || cfg.Report.TopN != 5 {
		t.Fatalf("unexpected report defaults: %+v", cfg.Report)
	}
	if cfg.LLM.Timeout != 180*time.Second || cfg.LLM.ExtractTimeout != 15*time.Minute {
		t.Fatalf("unexpected llm timeouts: %+v", cfg.LLM)
	}
	if cfg.HasProfileCredentials() {
		t.Fatal("expected no profile credentials by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
session:
  seeds: ["https://galxe.com", "https://app.layer3.xyz/leaderboard"]
  max_depth: 1
  include_external: true
  proxies: ["10.0.0.1:8080:user:pass"]
  workers: 3
fetch:
  mode: hybrid
  nav_timeout: 30s
  scroll_count: 3
reducer:
  semantic: false
llm:
  model: llama3
enrich:
  bearer_token: token
  keywords: ["xp"]
report:
  follower_threshold: 5000
storage:
  backend: memory
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Session.Seeds) != 2 || cfg.Session.Seeds[1] != "https://app.layer3.xyz/leaderboard" {
		t.Fatalf("expected seeds to load, got %v", cfg.Session.Seeds)
	}
	if cfg.Session.MaxDepth != 1 || !cfg.Session.IncludeExternal || cfg.Session.Workers != 3 {
		t.Fatalf("expected session overrides, got %+v", cfg.Session)
	}
	if cfg.Fetch.Mode != ModeHybrid || cfg.Fetch.NavTimeout != 30*time.Second || cfg.Fetch.ScrollCount != 3 {
		t.Fatalf("expected fetch overrides, got %+v", cfg.Fetch)
	}
	if cfg.Reducer.Semantic || cfg.LLM.Model != "llama3" {
		t.Fatalf("expected reducer and llm overrides")
	}
	if !cfg.HasProfileCredentials() || len(cfg.Enrich.Keywords) != 1 {
		t.Fatalf("expected enrich overrides, got %+v", cfg.Enrich)
	}
	if cfg.Report.FollowerThreshold != 5000 || cfg.Report.TopN != 5 {
		t.Fatalf("expected report override with defaults kept, got %+v", cfg.Report)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Logging.Development {
		t.Fatalf("expected storage and logging overrides")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "negative depth", mutate: func(c *Config) { c.Session.MaxDepth = -1 }, want: "session.max_depth"},
		{name: "no workers", mutate: func(c *Config) { c.Session.Workers = 0 }, want: "session.workers"},
		{name: "bad mode", mutate: func(c *Config) { c.Fetch.Mode = "curl" }, want: "fetch.mode"},
		{name: "no nav timeout", mutate: func(c *Config) { c.Fetch.NavTimeout = 0 }, want: "fetch.nav_timeout"},
		{name: "no chunk size", mutate: func(c *Config) { c.Reducer.ChunkSize = 0 }, want: "reducer.chunk_size"},
		{name: "llm without url", mutate: func(c *Config) { c.LLM.BaseURL = " " }, want: "llm.base_url"},
		{name: "page deadline below request timeout", mutate: func(c *Config) { c.LLM.ExtractTimeout = time.Minute }, want: "llm.extract_timeout"},
		{name: "no post window", mutate: func(c *Config) { c.Enrich.PostWindow = 0 }, want: "enrich.post_window"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = BackendGCS }, want: "storage.bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
