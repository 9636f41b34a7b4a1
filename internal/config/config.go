// Package config loads and saves the TOML settings file.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/thoth-viewer/thoth/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// FileName is the settings file inside Dir.
const FileName = "config.toml"

// EnvDir overrides the settings directory.
const EnvDir = "THOTH_CONFIG_DIR"

// Config is the root of config.toml.
type Config struct {
	Search      SearchSettings      `toml:"search"`
	Performance PerformanceSettings `toml:"performance"`
	Index       IndexSettings       `toml:"index"`
	Logs        LogSettings         `toml:"logs"`
	Recent      RecentSettings      `toml:"recent"`
	Watch       WatchSettings       `toml:"watch"`
}

// SearchSettings tunes matching and the scan worker pool.
type SearchSettings struct {
	// MatchCase makes free-text and filter string comparison case-sensitive.
	// Default: false
	MatchCase bool `toml:"match_case"`

	// MaxFragmentsPerRecord caps highlight fragments per record
	// Default: 64
	MaxFragmentsPerRecord int `toml:"max_fragments_per_record"`

	// PreviewContextBytes is the context shown on each side of a hit preview
	// Default: 36
	PreviewContextBytes *int `toml:"preview_context_bytes"`

	// Workers is the scan pool size. 0 means one per CPU.
	Workers int `toml:"workers"`

	// BatchSize is how many records a worker claims at a time. Cancellation
	// is checked between batches.
	// Default: 256
	BatchSize int `toml:"batch_size"`

	// ProgressPerSecond throttles progress updates
	// Default: 4
	ProgressPerSecond float64 `toml:"progress_per_second"`
}

func (s *SearchSettings) GetMaxFragments() int {
	if s.MaxFragmentsPerRecord <= 0 {
		return 64
	}
	return s.MaxFragmentsPerRecord
}

func (s *SearchSettings) GetPreviewContext() int {
	if s.PreviewContextBytes == nil || *s.PreviewContextBytes < 0 {
		return 36
	}
	return *s.PreviewContextBytes
}

func (s *SearchSettings) GetBatchSize() int {
	if s.BatchSize <= 0 {
		return 256
	}
	return s.BatchSize
}

func (s *SearchSettings) GetProgressPerSecond() float64 {
	if s.ProgressPerSecond <= 0 {
		return 4
	}
	return s.ProgressPerSecond
}

// PerformanceSettings bounds memory use.
type PerformanceSettings struct {
	// CacheSize is the number of parsed records kept in the LRU cache.
	// 0 disables the cache.
	// Default: 100
	CacheSize *int `toml:"cache_size"`
}

func (p *PerformanceSettings) GetCacheSize() int {
	if p.CacheSize == nil || *p.CacheSize < 0 {
		return 100
	}
	return *p.CacheSize
}

// IndexSettings controls how files are partitioned into records.
type IndexSettings struct {
	// Shape forces a layout: "auto", "ndjson", "array" or "single"
	// Default: "auto"
	Shape string `toml:"shape"`
}

// LogSettings configures the rotating debug log.
type LogSettings struct {
	// Dir holds debug.log. Empty uses the settings directory when debug is on.
	Dir string `toml:"dir"`

	// Level is the minimum level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	// Default: 10
	MaxSizeMB int `toml:"max_size_mb"`

	// Default: 3
	MaxBackups int `toml:"max_backups"`

	// Default: 7
	MaxAgeDays int `toml:"max_age_days"`

	// Compress gzips rotated files
	// Default: true
	Compress *bool `toml:"compress"`

	// Debug turns logging on without --debug
	Debug bool `toml:"debug"`

	// Pprof serves profiles on localhost:6060 while debugging
	Pprof bool `toml:"pprof"`
}

func (l *LogSettings) GetCompress() bool {
	if l.Compress == nil {
		return true
	}
	return *l.Compress
}

// RecentSettings controls the recently opened files list.
type RecentSettings struct {
	// Default: true
	Enabled *bool `toml:"enabled"`

	// MaxFiles is how many entries are kept
	// Default: 10
	MaxFiles int `toml:"max_files"`

	// DBPath is the SQLite database. Empty means recent.db beside config.toml.
	DBPath string `toml:"db_path"`
}

func (r *RecentSettings) GetEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

func (r *RecentSettings) GetMaxFiles() int {
	if r.MaxFiles <= 0 {
		return 10
	}
	return r.MaxFiles
}

// WatchSettings controls follow mode.
type WatchSettings struct {
	// DebounceMS coalesces bursts of file events
	// Default: 300
	DebounceMS int `toml:"debounce_ms"`
}

func (w *WatchSettings) GetDebounceMS() int {
	if w.DebounceMS <= 0 {
		return 300
	}
	return w.DebounceMS
}

// Default returns a config with every setting at its default.
func Default() *Config {
	return &Config{Index: IndexSettings{Shape: "auto"}}
}

// Dir returns the settings directory.
func Dir() (string, error) {
	if d := os.Getenv(EnvDir); d != "" {
		return d, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, "thoth"), nil
}

// Path returns the location of config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Load reads config.toml once and caches it. A missing file yields the
// defaults. A parse error is returned alongside the defaults so callers can
// report it and carry on.
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = Default()
		return cache, nil
	}
	cfg, err := LoadFile(path)
	cache = cfg
	return cache, err
}

// LoadFile reads the config at path without caching.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		configLog.Warn("config_parse_failed", slog.String("path", path), slog.String("error", err.Error()))
		return Default(), fmt.Errorf("config.toml parse error: %w", err)
	}
	configLog.Debug("config_loaded", slog.String("path", path))
	return cfg, nil
}

// Reload drops the cached config and reads it again.
func Reload() (*Config, error) {
	ClearCache()
	return Load()
}

// ClearCache makes the next Load read from disk.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// Save writes cfg to the default location.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes cfg to path atomically: temp file, fsync, rename.
func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# thoth configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := syncFile(tmpPath); err != nil {
		configLog.Warn("config_sync_failed", slog.String("path", tmpPath), slog.String("error", err.Error()))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}

	ClearCache()
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
