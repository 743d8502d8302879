// Package config loads the collector's configuration from a JSON5 file, an
// optional local override file and COLLECTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Checkpoint backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config is the collector configuration. Durations are Go duration strings
// ("750ms", "2s") so config files stay readable.
type Config struct {
	LogLevel  string `json:"log_level"`
	LogPretty bool   `json:"log_pretty"`

	// DataDir holds checkpoints/, batches/ and output/.
	DataDir string `json:"data_dir"`

	// CheckpointBackend is "file" or "redis".
	CheckpointBackend string `json:"checkpoint_backend"`
	RedisAddr         string `json:"redis_addr"`
	// CacheEnabled turns on the Redis response cache. Requires RedisAddr.
	CacheEnabled bool   `json:"cache_enabled"`
	CacheTTL     string `json:"cache_ttl"`

	BatchSize     int `json:"batch_size"`
	PerItemTarget int `json:"per_item_target"`

	// ItemDelay paces vendors; PageDelay paces product pages within a vendor.
	ItemDelay string `json:"item_delay"`
	PageDelay string `json:"page_delay"`

	VendorBaseURL  string   `json:"vendor_base_url"`
	UserAgent      string   `json:"user_agent"`
	RequestTimeout string   `json:"request_timeout"`
	PageSize       int      `json:"page_size"`
	MaxPages       int      `json:"max_pages"`
	Proxies        []string `json:"proxies"`

	FlushAttempts int    `json:"flush_attempts"`
	FlushBackoff  string `json:"flush_backoff"`

	// MetricsAddr serves /metrics and /health when set.
	MetricsAddr string `json:"metrics_addr"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel:          "info",
		DataDir:           "data",
		CheckpointBackend: BackendFile,
		RedisAddr:         "localhost:6379",
		CacheTTL:          "5m",
		BatchSize:         50,
		PerItemTarget:     1000,
		ItemDelay:         "1s",
		PageDelay:         "500ms",
		UserAgent:         "vendor-collector/1.0",
		RequestTimeout:    "30s",
		PageSize:          70,
		MaxPages:          100,
		FlushAttempts:     3,
		FlushBackoff:      "500ms",
	}
}

// Load reads path over DefaultConfig, merges <name>.local.<ext> next to it
// and applies environment overrides. A missing path yields the defaults plus
// environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		for _, p := range []string{path, localPath(path)} {
			if err := mergeFile(&cfg, p); err != nil {
				return cfg, err
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// mergeFile overrides non-zero fields of cfg with the file's values.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || len(data) == 0 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var override Config
	if err := json5.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// getEnv gets environment variable with default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func applyEnv(cfg *Config) error {
	cfg.LogLevel = getEnv("COLLECTOR_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = getEnv("COLLECTOR_DATA_DIR", cfg.DataDir)
	cfg.CheckpointBackend = getEnv("COLLECTOR_CHECKPOINT_BACKEND", cfg.CheckpointBackend)
	cfg.RedisAddr = getEnv("COLLECTOR_REDIS_ADDR", cfg.RedisAddr)
	cfg.CacheTTL = getEnv("COLLECTOR_CACHE_TTL", cfg.CacheTTL)
	cfg.ItemDelay = getEnv("COLLECTOR_ITEM_DELAY", cfg.ItemDelay)
	cfg.PageDelay = getEnv("COLLECTOR_PAGE_DELAY", cfg.PageDelay)
	cfg.VendorBaseURL = getEnv("COLLECTOR_VENDOR_BASE_URL", cfg.VendorBaseURL)
	cfg.UserAgent = getEnv("COLLECTOR_USER_AGENT", cfg.UserAgent)
	cfg.MetricsAddr = getEnv("COLLECTOR_METRICS_ADDR", cfg.MetricsAddr)

	if v := os.Getenv("COLLECTOR_PROXIES"); v != "" {
		cfg.Proxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Proxies = append(cfg.Proxies, p)
			}
		}
	}

	bools := map[string]*bool{
		"COLLECTOR_LOG_PRETTY":    &cfg.LogPretty,
		"COLLECTOR_CACHE_ENABLED": &cfg.CacheEnabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	ints := map[string]*int{
		"COLLECTOR_BATCH_SIZE":      &cfg.BatchSize,
		"COLLECTOR_PER_ITEM_TARGET": &cfg.PerItemTarget,
		"COLLECTOR_PAGE_SIZE":       &cfg.PageSize,
		"COLLECTOR_MAX_PAGES":       &cfg.MaxPages,
		"COLLECTOR_FLUSH_ATTEMPTS":  &cfg.FlushAttempts,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

// Validate rejects configurations the collector cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive (got %d)", c.BatchSize))
	}
	if c.PerItemTarget <= 0 {
		errs = append(errs, fmt.Errorf("per_item_target must be positive (got %d)", c.PerItemTarget))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive (got %d)", c.PageSize))
	}
	if c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("max_pages must not be negative (got %d)", c.MaxPages))
	}
	if c.FlushAttempts <= 0 {
		errs = append(errs, fmt.Errorf("flush_attempts must be positive (got %d)", c.FlushAttempts))
	}
	switch c.CheckpointBackend {
	case BackendFile, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint_backend %q", c.CheckpointBackend))
	}
	if (c.CheckpointBackend == BackendRedis || c.CacheEnabled) && c.RedisAddr == "" {
		errs = append(errs, errors.New("redis_addr is required for the redis backend and cache"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	durations := map[string]string{
		"item_delay":      c.ItemDelay,
		"page_delay":      c.PageDelay,
		"cache_ttl":       c.CacheTTL,
		"request_timeout": c.RequestTimeout,
		"flush_backoff":   c.FlushBackoff,
	}
	for name, v := range durations {
		if _, err := parseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func mustDuration(s string) time.Duration {
	d, _ := parseDuration(s)
	return d
}

// ItemDelayDuration is the pause between vendors.
func (c Config) ItemDelayDuration() time.Duration { return mustDuration(c.ItemDelay) }

// PageDelayDuration is the pause between product pages.
func (c Config) PageDelayDuration() time.Duration { return mustDuration(c.PageDelay) }

// CacheTTLDuration is the fallback lifetime of cached responses.
func (c Config) CacheTTLDuration() time.Duration { return mustDuration(c.CacheTTL) }

// RequestTimeoutDuration bounds a single vendor request.
func (c Config) RequestTimeoutDuration() time.Duration { return mustDuration(c.RequestTimeout) }

// FlushBackoffDuration is the first wait between batch write attempts.
func (c Config) FlushBackoffDuration() time.Duration { return mustDuration(c.FlushBackoff) }

// CheckpointDir is where the file backend keeps checkpoints.
func (c Config) CheckpointDir() string { return filepath.Join(c.DataDir, "checkpoints") }

// BatchDir is the root of the per-session batch directories.
func (c Config) BatchDir() string { return filepath.Join(c.DataDir, "batches") }

// OutputDir receives merged outputs.
func (c Config) OutputDir() string { return filepath.Join(c.DataDir, "output") }
