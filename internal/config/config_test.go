package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mapEnv(values map[string]string) func(string) string {
	return func(name string) string {
		return values[name]
	}
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	cfg := ApplyEnv(Default(), mapEnv(map[string]string{
		"PORT":                   "4000",
		"N8N_TIMEOUT":            "120000",
		"N8N_BASE_URL":           "http://engine:5678/webhook",
		"INDEX_SYNC_INTERVAL":    "30s",
		"INDEX_SYNC_COLLECTIONS": "articles, notes,,",
		"INDEX_SYNC_WATCH":       "true",
		"MAX_BODY_BYTES":         "2048",
		"ADMIN_TOKEN_SECRET":     "s3cret",
	}))
	if cfg.Port != 4000 || cfg.Addr() != ":4000" {
		t.Fatalf("expected port 4000, got %d", cfg.Port)
	}
	if cfg.EngineTimeout != 2*time.Minute {
		t.Fatalf("expected millisecond timeout, got %s", cfg.EngineTimeout)
	}
	if cfg.SyncInterval != 30*time.Second || !cfg.SyncWatch {
		t.Fatalf("unexpected sync settings: %+v", cfg)
	}
	if strings.Join(cfg.SyncCollections, ",") != "articles,notes" {
		t.Fatalf("expected trimmed collection list, got %v", cfg.SyncCollections)
	}
	if cfg.MaxBodyBytes != 2048 || cfg.AdminSecret != "s3cret" {
		t.Fatalf("unexpected server settings: %+v", cfg)
	}
	if len(cfg.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", cfg.Warnings)
	}
}

func TestApplyEnvFallsBackOnInvalidValues(t *testing.T) {
	cfg := ApplyEnv(Default(), mapEnv(map[string]string{
		"PORT":                "not-a-port",
		"INDEX_SYNC_INTERVAL": "soon",
		"INDEX_SYNC_WATCH":    "maybe",
		"N8N_TIMEOUT":         "5m",
	}))
	if cfg.Port != DefaultPort || cfg.SyncInterval != DefaultSyncInterval || cfg.SyncWatch {
		t.Fatalf("expected fallbacks, got %+v", cfg)
	}
	if cfg.EngineTimeout != 5*time.Minute {
		t.Fatalf("expected duration string accepted, got %s", cfg.EngineTimeout)
	}
	if len(cfg.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", cfg.Warnings)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "learnstudio.yaml")
	doc := "port: 3100\ndataDir: /srv/studio\nsyncInterval: 1m\nsyncCollections: [articles, plans]\nlogFormat: json\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("PORT", "3200")
	t.Setenv("PLANS_BASE_PATH", filepath.Join(dir, "my-plans"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 3200 {
		t.Fatalf("expected env to win over file, got %d", cfg.Port)
	}
	if cfg.SyncInterval != time.Minute || cfg.LogFormat != "json" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.ArticlesDir != filepath.Join("/srv/studio", "english", "artikel") {
		t.Fatalf("expected articles dir under data dir, got %s", cfg.ArticlesDir)
	}
	if cfg.PlansDir != filepath.Join(dir, "my-plans") {
		t.Fatalf("expected explicit plans dir, got %s", cfg.PlansDir)
	}
	if cfg.EngineTimeout != DefaultEngineTimeout {
		t.Fatalf("expected default engine timeout, got %s", cfg.EngineTimeout)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("port: [1, 2"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path, Default()); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), Default()); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.resolveDirs()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	cfg.Port = 0
	cfg.EngineURL = "engine:5678"
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"port", "engine url", "log format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	logger, err := cfg.NewLogger(&buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "collection", "articles")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"collection":"articles"`) {
		t.Fatalf("unexpected log output: %s", out)
	}

	cfg.LogLevel = "loud"
	if _, err := cfg.NewLogger(&buf); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
