// Package scan fans a matcher out across the records of a store with a
// bounded worker pool and assembles ordered results.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thoth-viewer/thoth/internal/logging"
	"github.com/thoth-viewer/thoth/internal/match"
	"github.com/thoth-viewer/thoth/internal/store"
)

var scanLog = logging.ForComponent(logging.CompScan)

// ErrCancelled is returned when the context ends before the scan completes.
// No partial results accompany it.
var ErrCancelled = errors.New("scan cancelled")

const (
	DefaultBatchSize         = 256
	DefaultProgressPerSecond = 4
)

// Source is the read side of a record store.
type Source interface {
	Len() int
	RawSlice(i int) ([]byte, error)
	Get(i int) (gjson.Result, error)
}

// Range selects records [Start, End). An End of zero or past the last
// record extends to the last record, so the zero value selects everything.
type Range struct {
	Start int
	End   int
}

func (r Range) clamp(n int) Range {
	if r.Start == 0 && r.End == 0 {
		return Range{End: n}
	}
	if r.Start < 0 {
		r.Start = 0
	}
	if r.End > n || r.End <= 0 {
		r.End = n
	}
	if r.Start > r.End {
		r.Start = r.End
	}
	return r
}

// Progress is a snapshot of a running scan.
type Progress struct {
	Scanned int
	Total   int
	Matched int
}

type Options struct {
	// Workers defaults to runtime.NumCPU().
	Workers   int
	BatchSize int
	// Progress is called from worker goroutines, at most ProgressPerSecond
	// times per second. It must not block.
	Progress          func(Progress)
	ProgressPerSecond float64
}

// Hit is one matching record.
type Hit struct {
	Index     int
	Fragments []match.Fragment
	Preview   match.Preview
}

type Stats struct {
	Scanned int
	Matched int
	// Malformed counts records a path query could not parse.
	Malformed int
	Elapsed   time.Duration
}

// Results is the immutable outcome of one completed scan.
type Results struct {
	ID         string
	Hits       []Hit
	Stats      Stats
	Range      Range
	highlights *HighlightMap
}

// Highlights returns the per-record fragment lookup built for these results.
func (r *Results) Highlights() *HighlightMap {
	if r == nil {
		return nil
	}
	return r.highlights
}

type workerState struct {
	hits      []Hit
	scanned   int
	malformed int
}

// Run scans rng of src with m. Cancellation is checked between batches; a
// cancelled scan returns ErrCancelled and nothing else. Per-record parse
// failures are counted and skipped; any other read failure aborts the scan.
func Run(ctx context.Context, src Source, m *match.Matcher, rng Range, opts Options) (*Results, error) {
	start := time.Now()
	id := uuid.NewString()
	rng = rng.clamp(src.Len())
	total := rng.End - rng.Start

	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	batches := (total + batch - 1) / batch
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > batches {
		workers = batches
	}

	log := scanLog.With(slog.String("run_id", id))
	log.Debug("scan_started",
		slog.Int("start", rng.Start),
		slog.Int("end", rng.End),
		slog.Int("workers", workers),
		slog.Int("batch_size", batch))

	pps := opts.ProgressPerSecond
	if pps <= 0 {
		pps = DefaultProgressPerSecond
	}
	limiter := rate.NewLimiter(rate.Limit(pps), 1)

	var (
		next    atomic.Int64
		scanned atomic.Int64
		matched atomic.Int64
		states  = make([]workerState, workers)
	)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		st := &states[w]
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				b := int(next.Add(1) - 1)
				lo := rng.Start + b*batch
				if lo >= rng.End {
					return nil
				}
				hi := min(lo+batch, rng.End)
				for i := lo; i < hi; i++ {
					hit, err := scanOne(src, m, i)
					if errors.Is(err, store.ErrMalformedRecord) {
						st.malformed++
						logging.Aggregate(logging.CompScan, "malformed_record", id, i)
						continue
					}
					if err != nil {
						return err
					}
					if hit != nil {
						st.hits = append(st.hits, *hit)
						matched.Add(1)
					}
				}
				st.scanned += hi - lo
				done := scanned.Add(int64(hi - lo))
				if opts.Progress != nil && limiter.Allow() {
					opts.Progress(Progress{Scanned: int(done), Total: total, Matched: int(matched.Load())})
				}
			}
		})
	}

	err := g.Wait()
	logging.FlushAggregates(id)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("scan_cancelled", slog.Int64("scanned", scanned.Load()), slog.Duration("elapsed", time.Since(start)))
			return nil, ErrCancelled
		}
		log.Error("scan_failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("scan: %w", err)
	}

	res := &Results{ID: id, Range: rng}
	for i := range states {
		res.Hits = append(res.Hits, states[i].hits...)
		res.Stats.Scanned += states[i].scanned
		res.Stats.Malformed += states[i].malformed
	}
	sort.Slice(res.Hits, func(a, b int) bool { return res.Hits[a].Index < res.Hits[b].Index })
	res.Stats.Matched = len(res.Hits)
	res.Stats.Elapsed = time.Since(start)
	res.highlights = newHighlightMap(res.Hits)

	if opts.Progress != nil {
		opts.Progress(Progress{Scanned: total, Total: total, Matched: res.Stats.Matched})
	}

	log.Info("scan_completed",
		slog.Int("scanned", res.Stats.Scanned),
		slog.Int("matched", res.Stats.Matched),
		slog.Int("malformed", res.Stats.Malformed),
		slog.Duration("elapsed", res.Stats.Elapsed))
	return res, nil
}

func scanOne(src Source, m *match.Matcher, i int) (*Hit, error) {
	var value *gjson.Result
	if m.NeedsValue() {
		v, err := src.Get(i)
		if err != nil {
			return nil, err
		}
		value = &v
	}
	raw, err := src.RawSlice(i)
	if err != nil {
		return nil, err
	}
	res, err := m.ScanRecord(match.Record{Index: i, Raw: raw, Value: value})
	if err != nil || res == nil {
		return nil, err
	}
	return &Hit{Index: i, Fragments: res.Fragments, Preview: res.Preview}, nil
}
