package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ytdlp timeout", func(c *Config) { c.YtdlpTimeout = 0 }},
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"zero fallback cap", func(c *Config) { c.FallbackMaxItems = 0 }},
		{"zero page size", func(c *Config) { c.FallbackPageSize = 0 }},
		{"zero short ceiling", func(c *Config) { c.ShortMaxSeconds = 0 }},
		{"negative reserve", func(c *Config) { c.QuotaReserve = -1 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"backoff order", func(c *Config) { c.MaxBackoff = time.Millisecond }},
		{"multiplier", func(c *Config) { c.BackoffMultiplier = 1 }},
		{"empty output", func(c *Config) { c.OutputDir = "" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ytscrape.yaml")
	data := "api_key: from-file\nfallback_max_items: 200\nytdlp_timeout: 90s\noutput_dir: /tmp/music\nprobe_shorts: false\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want from-file", cfg.APIKey)
	}
	if cfg.FallbackMaxItems != 200 {
		t.Errorf("FallbackMaxItems = %d, want 200", cfg.FallbackMaxItems)
	}
	if cfg.YtdlpTimeout != 90*time.Second {
		t.Errorf("YtdlpTimeout = %v, want 90s", cfg.YtdlpTimeout)
	}
	if cfg.ProbeShorts {
		t.Error("ProbeShorts = true, want false")
	}
	if cfg.ShortMaxSeconds != 180 {
		t.Errorf("ShortMaxSeconds = %d, want default 180", cfg.ShortMaxSeconds)
	}
}

func TestLoadFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ytscrape.json")
	if err := os.WriteFile(path, []byte(`{"output_dir":"downloads","max_retries":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.OutputDir != "downloads" || cfg.MaxRetries != 1 {
		t.Errorf("got output_dir=%q max_retries=%d", cfg.OutputDir, cfg.MaxRetries)
	}
}

func TestLoadFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ytscrape.toml")
	os.WriteFile(path, []byte("x = 1"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile(.toml) = nil error, want error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ytscrape.yml")
	os.WriteFile(path, []byte("api_key: from-file\n"), 0o644)

	t.Setenv("YOUTUBE_API_KEY", "from-env")
	t.Setenv("YTSCRAPE_FALLBACK_ON_QUOTA", "false")
	t.Setenv("YTSCRAPE_HTTP_TIMEOUT", "5s")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.APIKey)
	}
	if cfg.FallbackOnQuota {
		t.Error("FallbackOnQuota = true, want false")
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v, want 5s", cfg.HTTPTimeout)
	}
}

func TestEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("YTSCRAPE_MAX_RETRIES", "many")
	cfg := DefaultConfig()
	if err := cfg.loadFromEnv(); err == nil {
		t.Error("loadFromEnv() = nil, want error for YTSCRAPE_MAX_RETRIES=many")
	}
}

func TestLoadReadsDotEnvAndWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("YTSCRAPE_API_KEY", "")
	t.Cleanup(func() { os.Unsetenv("YTSCRAPE_OUTPUT_DIR") })

	os.WriteFile(".env", []byte("YTSCRAPE_OUTPUT_DIR=env-out\n"), 0o644)
	os.WriteFile("ytscrape.yaml", []byte("output_dir: file-out\nlog_level: debug\n"), 0o644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.OutputDir != "env-out" {
		t.Errorf("OutputDir = %q, want env-out", cfg.OutputDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestRetryConfig(t *testing.T) {
	cfg := DefaultConfig()
	r := cfg.Retry()
	if r.MaxRetries != 3 || r.InitialBackoff != 2*time.Second || r.Multiplier != 2 {
		t.Errorf("Retry() = %+v", r)
	}
	if cfg.ShortMax() != 3*time.Minute {
		t.Errorf("ShortMax() = %v, want 3m", cfg.ShortMax())
	}
}
