package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/thoth-viewer/thoth/internal/config"
	"github.com/thoth-viewer/thoth/internal/index"
	"github.com/thoth-viewer/thoth/internal/logging"
	"github.com/thoth-viewer/thoth/internal/recent"
	"github.com/thoth-viewer/thoth/internal/search"
	"github.com/thoth-viewer/thoth/internal/store"
)

var cliLog = logging.ForComponent(logging.CompCLI)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
	logDir     string
	shape      string
	cacheSize  int
}

// app carries the resolved settings and output streams for one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer
	flags  globalFlags
	cfg    *config.Config
	shape  index.Shape
	logDir string
	// recentPath overrides the recent files database location.
	recentPath string
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "thoth <command> [flags]",
		Short:         "Inspect and search large JSON and NDJSON files",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: heredoc.Doc(`
			$ thoth info events.ndjson
			$ thoth get events.ndjson 42
			$ thoth search events.ndjson timeout
			$ thoth search events.ndjson '$.user.name = "ada"'
		`),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Config file (default $THOTH_CONFIG_DIR/config.toml)")
	pf.BoolVar(&a.flags.debug, "debug", false, "Write debug logs")
	pf.StringVar(&a.flags.logDir, "log-dir", "", "Directory for log files")
	pf.StringVar(&a.flags.shape, "shape", "", "File shape: auto, ndjson, array, single")
	pf.IntVar(&a.flags.cacheSize, "cache-size", -1, "Parsed record cache capacity")

	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.AddCommand(
		infoCmd(a),
		getCmd(a),
		searchCmd(a),
		pathsCmd(a),
		recentCmd(a),
	)
	return root
}

// setup loads config, applies flag overrides and starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.flags.configPath != "" {
		cfg, err = config.LoadFile(a.flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(a.errOut, "Warning: %v (using defaults)\n", err)
	}
	local := *cfg
	cfg = &local
	a.cfg = cfg

	if cmd.Flags().Changed("debug") {
		cfg.Logs.Debug = a.flags.debug
	}
	if a.flags.logDir != "" {
		cfg.Logs.Dir = a.flags.logDir
	}
	if a.flags.shape != "" {
		cfg.Index.Shape = a.flags.shape
	}
	if a.flags.cacheSize >= 0 {
		n := a.flags.cacheSize
		cfg.Performance.CacheSize = &n
	}

	a.shape, err = index.ParseShape(cfg.Index.Shape)
	if err != nil {
		return err
	}

	a.logDir = cfg.Logs.Dir
	if a.logDir == "" && cfg.Logs.Debug {
		a.logDir = filepath.Join(os.TempDir(), "thoth")
	}
	logging.Init(logging.Config{
		Dir:        cfg.Logs.Dir,
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.GetCompress(),
		Pprof:      cfg.Logs.Pprof,
		Debug:      cfg.Logs.Debug,
	})
	initColorProfile(a.out)
	return nil
}

// openStore indexes path and remembers it in the recent files list.
func (a *app) openStore(path string) (*store.Store, time.Duration, error) {
	start := time.Now()
	st, err := store.Open(path,
		store.WithShape(a.shape),
		store.WithCacheSize(a.cfg.Performance.GetCacheSize()))
	if err != nil {
		return nil, 0, err
	}
	took := time.Since(start)
	a.remember(st)
	return st, took, nil
}

func (a *app) remember(st *store.Store) {
	if !a.cfg.Recent.GetEnabled() {
		return
	}
	db, err := a.openRecent()
	if err != nil {
		cliLog.Warn("recent_open_failed", slog.String("error", err.Error()))
		return
	}
	defer db.Close()

	abs, err := filepath.Abs(st.Path())
	if err != nil {
		abs = st.Path()
	}
	if err := db.Touch(recent.Entry{
		Path:    abs,
		Shape:   st.Shape().String(),
		Records: st.Len(),
		Size:    st.Index().Size(),
	}); err != nil {
		cliLog.Warn("recent_touch_failed", slog.String("error", err.Error()))
	}
}

func (a *app) openRecent() (*recent.DB, error) {
	path := a.recentPath
	if path == "" {
		path = a.cfg.Recent.DBPath
	}
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, recent.FileName)
	}
	db, err := recent.Open(path, a.cfg.Recent.GetMaxFiles())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// sessionConfig maps the [search] settings onto a search session.
func (a *app) sessionConfig(matchCase bool) search.Config {
	s := a.cfg.Search
	return search.Config{
		MatchCase:         matchCase || s.MatchCase,
		MaxFragments:      s.GetMaxFragments(),
		PreviewContext:    s.GetPreviewContext(),
		Workers:           s.Workers,
		BatchSize:         s.GetBatchSize(),
		ProgressPerSecond: s.GetProgressPerSecond(),
	}
}
