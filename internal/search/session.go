// Package search owns the active query of a viewer and arbitrates that at
// most one scan runs at a time.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/thoth-viewer/thoth/internal/logging"
	"github.com/thoth-viewer/thoth/internal/match"
	"github.com/thoth-viewer/thoth/internal/query"
	"github.com/thoth-viewer/thoth/internal/scan"
)

var searchLog = logging.ForComponent(logging.CompSearch)

var ErrSessionClosed = errors.New("search session closed")

// State is the lifecycle phase of a session.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Config carries the engine settings a session applies to every search.
type Config struct {
	MatchCase         bool
	MaxFragments      int
	PreviewContext    int
	Workers           int
	BatchSize         int
	ProgressPerSecond float64
	// Range limits searches to part of the store. The zero value searches all.
	Range scan.Range
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	State State
	Query query.Query
	// Results are the latest completed results. While a new scan runs they
	// still describe the previous search until the new one completes.
	Results  *scan.Results
	Err      error
	Progress scan.Progress
}

// Session runs searches against one source. Start, Cancel and the accessors
// never block on a running scan.
type Session struct {
	mu     sync.Mutex
	src    scan.Source
	cfg    Config
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	snap   Snapshot
	closed bool
}

func NewSession(src scan.Source, cfg Config) *Session {
	done := make(chan struct{})
	close(done)
	return &Session{src: src, cfg: cfg, done: done}
}

// SetMatchCase changes case sensitivity for subsequent searches.
func (s *Session) SetMatchCase(on bool) {
	s.mu.Lock()
	s.cfg.MatchCase = on
	s.mu.Unlock()
}

// Start parses input and launches a scan, cancelling any scan in flight.
// Syntax errors are returned before anything changes. An empty input clears
// the session.
func (s *Session) Start(input string) error {
	s.mu.Lock()
	matchCase := s.cfg.MatchCase
	s.mu.Unlock()

	q, err := query.Parse(input, matchCase)
	if err != nil {
		return err
	}
	if q.Empty() {
		return s.Clear()
	}
	return s.StartQuery(q)
}

// StartQuery launches a scan for an already parsed query.
func (s *Session) StartQuery(q query.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	s.stopLocked()
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.snap.State = StateScanning
	s.snap.Query = q
	s.snap.Err = nil
	s.snap.Progress = scan.Progress{}

	searchLog.Info("search_started",
		slog.Uint64("generation", gen),
		slog.String("kind", q.Kind.String()),
		slog.String("query", q.Raw))

	go s.run(ctx, gen, q, s.src, s.cfg, done)
	return nil
}

// Rerun repeats the current query, e.g. after the source changed.
func (s *Session) Rerun() error {
	s.mu.Lock()
	q := s.snap.Query
	s.mu.Unlock()
	if q.Empty() {
		return nil
	}
	return s.StartQuery(q)
}

// SetSource replaces the searched source, cancelling a running scan and
// dropping results that referred to the old one.
func (s *Session) SetSource(src scan.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.src = src
	s.snap.Results = nil
	if s.snap.State == StateScanning {
		s.snap.State = StateCancelled
	}
}

func (s *Session) run(ctx context.Context, gen uint64, q query.Query, src scan.Source, cfg Config, done chan struct{}) {
	defer close(done)

	m := match.New(q,
		match.WithMaxFragments(cfg.MaxFragments),
		match.WithPreviewContext(cfg.PreviewContext))
	res, err := scan.Run(ctx, src, m, cfg.Range, scan.Options{
		Workers:           cfg.Workers,
		BatchSize:         cfg.BatchSize,
		ProgressPerSecond: cfg.ProgressPerSecond,
		Progress: func(p scan.Progress) {
			s.mu.Lock()
			if s.gen == gen {
				s.snap.Progress = p
			}
			s.mu.Unlock()
		},
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		searchLog.Debug("search_superseded", slog.Uint64("generation", gen))
		return
	}
	s.cancel = nil
	switch {
	case errors.Is(err, scan.ErrCancelled):
		s.snap.State = StateCancelled
		s.snap.Results = nil
	case err != nil:
		s.snap.State = StateFailed
		s.snap.Results = nil
		s.snap.Err = err
		searchLog.Warn("search_failed", slog.Uint64("generation", gen), slog.String("error", err.Error()))
	default:
		s.snap.State = StateCompleted
		s.snap.Results = res
		searchLog.Info("search_completed",
			slog.Uint64("generation", gen),
			slog.Int("matched", res.Stats.Matched),
			slog.Duration("elapsed", res.Stats.Elapsed))
	}
}

// stopLocked cancels the running scan and makes sure it can never publish.
func (s *Session) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.gen++
	}
}

// Cancel aborts the running scan. Its results are discarded along with any
// earlier ones. Cancel is a no-op when nothing is running.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.stopLocked()
	s.snap.State = StateCancelled
	s.snap.Results = nil
	searchLog.Info("search_cancelled", slog.String("query", s.snap.Query.Raw))
}

// Clear cancels any scan and returns the session to idle with no results.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.stopLocked()
	s.snap = Snapshot{}
	return nil
}

func (s *Session) Results() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Highlights returns the fragments of record i from the latest completed
// results.
func (s *Session) Highlights(i int) ([]match.Fragment, bool) {
	s.mu.Lock()
	res := s.snap.Results
	s.mu.Unlock()
	return res.Highlights().Lookup(i)
}

// Wait blocks until the current scan finishes or ctx ends, then returns the
// snapshot.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return s.Results(), ctx.Err()
	}
	return s.Results(), nil
}

// Close cancels any scan. The session rejects further searches.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.closed = true
}
