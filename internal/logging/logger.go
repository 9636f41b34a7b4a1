package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names attached to every record emitted through ForComponent.
const (
	CompIndex  = "index"
	CompStore  = "store"
	CompScan   = "scan"
	CompSearch = "search"
	CompConfig = "config"
	CompRecent = "recent"
	CompWatch  = "watch"
	CompCLI    = "cli"
)

// LogFileName is the rotating log file written inside Config.Dir.
const LogFileName = "debug.log"

// Config holds logging configuration.
type Config struct {
	// Dir is the directory for log files. Empty means no file output unless
	// Debug is set, in which case the OS temp dir is used.
	Dir string

	// Level is the minimum level: "debug", "info", "warn", "error"
	Level string

	// Format is "json" (default) or "text"
	Format string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// RingBufferSize is the in-memory crash buffer size in bytes (default: 1MB)
	RingBufferSize int

	// AggregateIntervalSecs is how often batched events are summarised (default: 30)
	AggregateIntervalSecs int

	// Pprof starts a pprof listener on localhost:6060
	Pprof bool

	Debug bool
}

var (
	globalLogger *slog.Logger
	globalRing   *RingBuffer
	globalAgg    *Aggregator
	globalMu     sync.RWMutex
	rotator      *lumberjack.Logger
)

// Init installs the process-wide logger. Calling Init again replaces the
// previous configuration; call Shutdown first to flush pending summaries.
func Init(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 7
	}
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 1024 * 1024
	}
	if cfg.AggregateIntervalSecs <= 0 {
		cfg.AggregateIntervalSecs = 30
	}

	level := parseLevel(cfg.Level)

	if !cfg.Debug && cfg.Dir == "" {
		globalLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		globalRing = NewRingBuffer(1024)
		globalAgg = NewAggregator(nil, cfg.AggregateIntervalSecs)
		return
	}

	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "thoth")
	}
	rotator = &lumberjack.Logger{
		Filename:   filepath.Join(dir, LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	globalRing = NewRingBuffer(cfg.RingBufferSize)
	out := io.MultiWriter(rotator, globalRing)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	globalLogger = slog.New(handler)

	globalAgg = NewAggregator(globalLogger, cfg.AggregateIntervalSecs)
	globalAgg.Start()

	if cfg.Pprof {
		startPprof()
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the global logger. Safe to call before Init.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return globalLogger
}

// ForComponent returns a logger tagged with component. The returned logger
// resolves the global handler on every record, so package-level loggers
// declared before Init still reach the configured output.
func ForComponent(name string) *slog.Logger {
	return slog.New(&componentHandler{component: name})
}

type componentHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{component: h.component, attrs: h.attrs, group: name}
}

// Aggregate counts a high-frequency event tied to record (or NoRecord) within
// run; a summary line is emitted per interval instead of one line per
// occurrence.
func Aggregate(component, event, run string, record int, fields ...slog.Attr) {
	if agg := aggregator(); agg != nil {
		agg.Record(EventKey{Component: component, Event: event, Run: run}, record, fields...)
	}
}

// FlushAggregates emits the pending summaries of run immediately.
func FlushAggregates(run string) {
	if agg := aggregator(); agg != nil {
		agg.FlushRun(run)
	}
}

func aggregator() *Aggregator {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalAgg
}

// DumpRingBuffer writes the most recent log output to path.
func DumpRingBuffer(path string) error {
	globalMu.RLock()
	ring := globalRing
	globalMu.RUnlock()
	if ring == nil {
		return nil
	}
	return ring.DumpToFile(path)
}

// Shutdown flushes pending summaries and closes the log file.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalAgg != nil {
		globalAgg.Stop()
		globalAgg = nil
	}
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
	globalLogger = nil
	globalRing = nil
}
