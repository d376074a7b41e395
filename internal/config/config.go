// Package config resolves server settings from defaults, an optional YAML
// file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 3001
	DefaultDataDir         = "public/data"
	DefaultEngineURL       = "http://localhost:5678/webhook"
	DefaultEngineTimeout   = 5 * time.Minute
	DefaultCORSOrigin      = "http://localhost:5173"
	DefaultSyncInterval    = 10 * time.Second
	DefaultPollInterval    = 5 * time.Second
	DefaultPollAttempts    = 36
	DefaultMaxBodyBytes    = 10 << 20
	DefaultShutdownTimeout = 15 * time.Second
)

// ConfigFileEnv names the variable pointing at an optional YAML file.
const ConfigFileEnv = "LEARNSTUDIO_CONFIG"

type Config struct {
	Port int `yaml:"port"`

	DataDir         string `yaml:"dataDir"`
	ArticlesDir     string `yaml:"articlesDir"`
	PlansDir        string `yaml:"plansDir"`
	NotesDir        string `yaml:"notesDir"`
	MentalHealthDir string `yaml:"mentalHealthDir"`
	ResearchDir     string `yaml:"researchDir"`
	ArticleAssetURL string `yaml:"articleAssetUrl"`

	EngineURL        string        `yaml:"engineUrl"`
	EngineTimeout    time.Duration `yaml:"engineTimeout"`
	EngineMaxRetries int           `yaml:"engineMaxRetries"`

	CORSOrigin      string        `yaml:"corsOrigin"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	AdminSecret     string        `yaml:"adminSecret"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	SyncInterval    time.Duration `yaml:"syncInterval"`
	SyncCollections []string      `yaml:"syncCollections"`
	SyncWatch       bool          `yaml:"syncWatch"`
	SyncJournalDSN  string        `yaml:"syncJournalDsn"`

	PollInterval    time.Duration `yaml:"pollInterval"`
	PollMaxAttempts int           `yaml:"pollMaxAttempts"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// Warnings lists environment values that failed to parse and were
	// replaced by their fallback.
	Warnings []string `yaml:"-"`
}

func Default() Config {
	return Config{
		Port:            DefaultPort,
		DataDir:         DefaultDataDir,
		EngineURL:       DefaultEngineURL,
		EngineTimeout:   DefaultEngineTimeout,
		CORSOrigin:      DefaultCORSOrigin,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		ShutdownTimeout: DefaultShutdownTimeout,
		SyncInterval:    DefaultSyncInterval,
		SyncCollections: []string{"articles"},
		PollInterval:    DefaultPollInterval,
		PollMaxAttempts: DefaultPollAttempts,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads .env (when present), the YAML file named by LEARNSTUDIO_CONFIG
// and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		fileCfg, err := LoadFile(path, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	cfg = ApplyEnv(cfg, os.Getenv)
	cfg.resolveDirs()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with every variable getenv reports as set.
func ApplyEnv(cfg Config, getenv func(string) string) Config {
	env := envReader{getenv: getenv}
	cfg.Port = env.intEnv("PORT", cfg.Port)
	cfg.DataDir = env.stringEnv("DATA_DIR", cfg.DataDir)
	cfg.ArticlesDir = env.stringEnv("ARTICLES_BASE_PATH", cfg.ArticlesDir)
	cfg.PlansDir = env.stringEnv("PLANS_BASE_PATH", cfg.PlansDir)
	cfg.NotesDir = env.stringEnv("NOTES_BASE_PATH", cfg.NotesDir)
	cfg.MentalHealthDir = env.stringEnv("MENTAL_HEALTH_BASE_PATH", cfg.MentalHealthDir)
	cfg.ResearchDir = env.stringEnv("RESEARCH_BASE_PATH", cfg.ResearchDir)
	cfg.ArticleAssetURL = env.stringEnv("ARTICLE_ASSET_URL", cfg.ArticleAssetURL)
	cfg.EngineURL = env.stringEnv("N8N_BASE_URL", cfg.EngineURL)
	cfg.EngineTimeout = env.millisEnv("N8N_TIMEOUT", cfg.EngineTimeout)
	cfg.EngineMaxRetries = env.intEnv("N8N_MAX_RETRIES", cfg.EngineMaxRetries)
	cfg.CORSOrigin = env.stringEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.MaxBodyBytes = env.int64Env("MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.AdminSecret = env.stringEnv("ADMIN_TOKEN_SECRET", cfg.AdminSecret)
	cfg.ShutdownTimeout = env.durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.SyncInterval = env.durationEnv("INDEX_SYNC_INTERVAL", cfg.SyncInterval)
	cfg.SyncCollections = env.listEnv("INDEX_SYNC_COLLECTIONS", cfg.SyncCollections)
	cfg.SyncWatch = env.boolEnv("INDEX_SYNC_WATCH", cfg.SyncWatch)
	cfg.SyncJournalDSN = env.stringEnv("SYNC_JOURNAL_DSN", cfg.SyncJournalDSN)
	cfg.PollInterval = env.durationEnv("GENERATION_POLL_INTERVAL", cfg.PollInterval)
	cfg.PollMaxAttempts = env.intEnv("GENERATION_MAX_ATTEMPTS", cfg.PollMaxAttempts)
	cfg.LogLevel = env.stringEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = env.stringEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.Warnings = append(cfg.Warnings, env.warnings...)
	return cfg
}

// resolveDirs fills collection directories left empty from DataDir.
func (c *Config) resolveDirs() {
	if c.ArticlesDir == "" {
		c.ArticlesDir = filepath.Join(c.DataDir, "english", "artikel")
	}
	if c.PlansDir == "" {
		c.PlansDir = filepath.Join(c.DataDir, "plans")
	}
	if c.NotesDir == "" {
		c.NotesDir = filepath.Join(c.DataDir, "notes")
	}
	if c.MentalHealthDir == "" {
		c.MentalHealthDir = filepath.Join(c.DataDir, "mental-health")
	}
	if c.ResearchDir == "" {
		c.ResearchDir = filepath.Join(c.DataDir, "research")
	}
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if u, err := url.Parse(c.EngineURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("engine url %q must be an absolute http(s) url", c.EngineURL))
	}
	if c.EngineTimeout <= 0 {
		errs = append(errs, errors.New("engine timeout must be positive"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("index sync interval must be positive"))
	}
	if c.PollInterval <= 0 || c.PollMaxAttempts <= 0 {
		errs = append(errs, errors.New("generation poll interval and attempts must be positive"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

type envReader struct {
	getenv   func(string) string
	warnings []string
}

func (e *envReader) raw(name string) string {
	return strings.TrimSpace(e.getenv(name))
}

func (e *envReader) warn(name, raw string, fallback any) {
	e.warnings = append(e.warnings, fmt.Sprintf("invalid %s=%q, using fallback %v", name, raw, fallback))
}

func (e *envReader) stringEnv(name, fallback string) string {
	if raw := e.raw(name); raw != "" {
		return raw
	}
	return fallback
}

func (e *envReader) intEnv(name string, fallback int) int {
	raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		e.warn(name, raw, fallback)
		return fallback
	}
	return value
}

func (e *envReader) int64Env(name string, fallback int64) int64 {
	raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		e.warn(name, raw, fallback)
		return fallback
	}
	return value
}

func (e *envReader) durationEnv(name string, fallback time.Duration) time.Duration {
	raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		e.warn(name, raw, fallback)
		return fallback
	}
	return value
}

// millisEnv accepts a bare millisecond count or a Go duration string.
func (e *envReader) millisEnv(name string, fallback time.Duration) time.Duration {
	raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		e.warn(name, raw, fallback)
		return fallback
	}
	return value
}

func (e *envReader) boolEnv(name string, fallback bool) bool {
	raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		e.warn(name, raw, fallback)
		return fallback
	}
	return value
}

func (e *envReader) listEnv(name string, fallback []string) []string {
	raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
