package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/fairscan/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
audit:
  metric: difference
  threshold: 0.2
  timeout: 90s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Audit.Metric != "difference" || cfg.Audit.Threshold != 0.2 {
		t.Errorf("unexpected audit config: %+v", cfg.Audit)
	}
	if cfg.Audit.Timeout != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", cfg.Audit.Timeout)
	}
	if cfg.Audit.TopK != 10 {
		t.Errorf("top_k = %d, want default 10", cfg.Audit.TopK)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/audits.db"
watch:
  directories: ["./models"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "audits.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "models")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown metric", "audit:\n  metric: ratio\n"},
		{"negative threshold", "audit:\n  threshold: -0.5\n"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"bad target", "audit:\n  target_value: 3\n"},
		{"extension without dot", "watch:\n  extensions: [yaml]\n"},
		{"not yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit != 2 || cfg.Server.RateBurst != 5 {
		t.Errorf("default rate limit: got %v/%d", cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	if cfg.Audit.Metric != "divergence" || cfg.Audit.Threshold != 0.1 {
		t.Errorf("default audit: got %+v", cfg.Audit)
	}
	if cfg.Audit.Timeout != 30*time.Minute {
		t.Errorf("default timeout: got %v", cfg.Audit.Timeout)
	}
	if len(cfg.Watch.Extensions) != 5 || cfg.Watch.Extensions[0] != ".params" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/models"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestAuditConfig_Request(t *testing.T) {
	m := &models.Model{
		TargetValue: 1,
		Features: []models.Feature{
			{Sensitive: true}, {}, {Sensitive: true},
		},
	}
	cfg := &Config{}
	ApplyDefaults(cfg)

	req := cfg.Audit.Request(m)
	if req.TargetValue != 1 || req.K != 10 || req.Metric != models.MetricDivergence {
		t.Errorf("unexpected request: %+v", req)
	}
	if len(req.Sensitive) != 2 || req.Sensitive[1] != 2 {
		t.Errorf("sensitive = %v", req.Sensitive)
	}

	zero := 0
	cfg.Audit.TargetValue = &zero
	if got := cfg.Audit.Request(m).TargetValue; got != 0 {
		t.Errorf("target override: got %d", got)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
