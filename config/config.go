// Package config manages application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"ytscrape/internal/retry"
)

// Config holds all settings for scraping and downloading.
type Config struct {
	// APIKey is the YouTube Data API key. Empty selects the yt-dlp path.
	APIKey string `json:"api_key" yaml:"api_key"`
	// QuotaReserve is the estimated quota (units) kept untouched.
	QuotaReserve int `json:"quota_reserve" yaml:"quota_reserve"`
	// FallbackOnQuota continues a run on the yt-dlp path when the Data API
	// quota runs out. When false the run fails.
	FallbackOnQuota bool `json:"fallback_on_quota" yaml:"fallback_on_quota"`

	// YtdlpPath is the yt-dlp executable (default: "yt-dlp").
	YtdlpPath string `json:"ytdlp_path" yaml:"ytdlp_path"`
	// YtdlpTimeout bounds a single yt-dlp invocation.
	YtdlpTimeout time.Duration `json:"ytdlp_timeout" yaml:"ytdlp_timeout"`
	// FallbackMaxItems caps how many uploads the yt-dlp path enumerates.
	FallbackMaxItems int `json:"fallback_max_items" yaml:"fallback_max_items"`
	// FallbackPageSize is the number of entries listed per yt-dlp call.
	FallbackPageSize int `json:"fallback_page_size" yaml:"fallback_page_size"`

	// ShortMaxSeconds is the longest duration that still counts as a short.
	ShortMaxSeconds int `json:"short_max_seconds" yaml:"short_max_seconds"`
	// ProbeShorts enables the /shorts/<id> redirect probe.
	ProbeShorts bool `json:"probe_shorts" yaml:"probe_shorts"`
	// HTTPTimeout bounds page fetches and probes.
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`

	MaxRetries        int           `json:"max_retries" yaml:"max_retries"`
	InitialBackoff    time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier"`

	// OutputDir receives downloads, one subdirectory per channel.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// ListenAddr is where `serve` listens.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		QuotaReserve:      100,
		FallbackOnQuota:   true,
		YtdlpPath:         "yt-dlp",
		YtdlpTimeout:      5 * time.Minute,
		FallbackMaxItems:  360,
		FallbackPageSize:  50,
		ShortMaxSeconds:   180,
		ProbeShorts:       true,
		HTTPTimeout:       20 * time.Second,
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		OutputDir:         "output",
		LogLevel:          "info",
		ListenAddr:        ":8000",
	}
}

// fileNames are tried in order in each search directory.
var fileNames = []string{"ytscrape.yaml", "ytscrape.yml", "ytscrape.json"}

// Load builds the configuration.
// Priority: env vars > .env file > config file > defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if err := cfg.loadFromFile(searchPaths()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single config file over the defaults and applies the
// environment on top.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.decodeFile(path); err != nil {
		return nil, err
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchPaths() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "ytscrape"))
	}
	var paths []string
	for _, d := range dirs {
		for _, n := range fileNames {
			paths = append(paths, filepath.Join(d, n))
		}
	}
	return paths
}

// loadFromFile decodes the first existing file in paths.
func (c *Config) loadFromFile(paths []string) error {
	for _, p := range paths {
		err := c.decodeFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return err
	}
	return os.ErrNotExist
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".json":
		err = json.Unmarshal(data, c)
	default:
		return fmt.Errorf("%s: unsupported config format", path)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadFromEnv overrides config with environment variables. Malformed
// numbers and durations are reported instead of silently ignored.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("YTSCRAPE_API_KEY"); v != "" {
		c.APIKey = v
	}

	strs := map[string]*string{
		"YTSCRAPE_YTDLP_PATH": &c.YtdlpPath,
		"YTSCRAPE_OUTPUT_DIR": &c.OutputDir,
		"YTSCRAPE_LOG_LEVEL":  &c.LogLevel,
		"YTSCRAPE_LISTEN":     &c.ListenAddr,
	}
	for k, dst := range strs {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"YTSCRAPE_QUOTA_RESERVE":      &c.QuotaReserve,
		"YTSCRAPE_FALLBACK_MAX_ITEMS": &c.FallbackMaxItems,
		"YTSCRAPE_FALLBACK_PAGE_SIZE": &c.FallbackPageSize,
		"YTSCRAPE_SHORT_MAX_SECONDS":  &c.ShortMaxSeconds,
		"YTSCRAPE_MAX_RETRIES":        &c.MaxRetries,
	}
	for k, dst := range ints {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = n
		}
	}

	durs := map[string]*time.Duration{
		"YTSCRAPE_YTDLP_TIMEOUT":   &c.YtdlpTimeout,
		"YTSCRAPE_HTTP_TIMEOUT":    &c.HTTPTimeout,
		"YTSCRAPE_INITIAL_BACKOFF": &c.InitialBackoff,
		"YTSCRAPE_MAX_BACKOFF":     &c.MaxBackoff,
	}
	for k, dst := range durs {
		if v := os.Getenv(k); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"YTSCRAPE_FALLBACK_ON_QUOTA": &c.FallbackOnQuota,
		"YTSCRAPE_PROBE_SHORTS":      &c.ProbeShorts,
	}
	for k, dst := range bools {
		if v := os.Getenv(k); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.FallbackMaxItems <= 0 {
		return fmt.Errorf("fallback_max_items must be positive")
	}
	if c.FallbackPageSize <= 0 {
		return fmt.Errorf("fallback_page_size must be positive")
	}
	if c.ShortMaxSeconds <= 0 {
		return fmt.Errorf("short_max_seconds must be positive")
	}
	if c.QuotaReserve < 0 {
		return fmt.Errorf("quota_reserve must be non-negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Retry returns the backoff settings as a retry.Config.
func (c *Config) Retry() retry.Config {
	return retry.Config{
		MaxRetries:     c.MaxRetries,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		Multiplier:     c.BackoffMultiplier,
		JitterFraction: 0.2,
	}
}

// ShortMax returns ShortMaxSeconds as a duration.
func (c *Config) ShortMax() time.Duration {
	return time.Duration(c.ShortMaxSeconds) * time.Second
}

// Logger returns a text logger on stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
}
