package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// maxSampleRecords bounds how many record indices a summary lists.
const maxSampleRecords = 5

// NoRecord marks an event that is not tied to a record.
const NoRecord = -1

// EventKey identifies one batched event stream. Run groups events of a single
// scan so each scan gets its own summary; it may be empty.
type EventKey struct {
	Component string
	Event     string
	Run       string
}

// eventTally accumulates occurrences of one event between flushes.
type eventTally struct {
	count   int64
	first   int
	last    int
	samples []int
	fields  []slog.Attr
}

func (t *eventTally) add(record int, fields []slog.Attr) {
	t.count++
	if record != NoRecord {
		if t.first == NoRecord || record < t.first {
			t.first = record
		}
		if record > t.last {
			t.last = record
		}
		if len(t.samples) < maxSampleRecords {
			t.samples = append(t.samples, record)
		}
	}
	if len(fields) > 0 {
		t.fields = fields
	}
}

// Aggregator batches per-record events, such as malformed records met while
// scanning, into one "event_summary" line per event and run. Summaries go out
// every interval, when a run is flushed, or on Stop.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	tallies map[EventKey]*eventTally

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewAggregator creates an aggregator that flushes every intervalSecs seconds.
// A nil logger drops everything it records.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		tallies:  make(map[EventKey]*eventTally),
		done:     make(chan struct{}),
	}
}

func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flush(func(EventKey) bool { return true })
			case <-a.done:
				return
			}
		}
	}()
}

// Stop emits what is pending. Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.flush(func(EventKey) bool { return true })
	})
}

// Record counts one occurrence of key for record, or NoRecord. The fields of
// the latest call are attached to the summary.
func (a *Aggregator) Record(key EventKey, record int, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tallies[key]
	if !ok {
		t = &eventTally{first: NoRecord, last: NoRecord}
		a.tallies[key] = t
	}
	t.add(record, fields)
}

// Pending returns the not yet flushed count for key.
func (a *Aggregator) Pending(key EventKey) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.tallies[key]; ok {
		return t.count
	}
	return 0
}

// FlushRun emits the summaries of one run now, e.g. when its scan ends.
func (a *Aggregator) FlushRun(run string) {
	a.flush(func(k EventKey) bool { return k.Run == run })
}

func (a *Aggregator) flush(match func(EventKey) bool) {
	a.mu.Lock()
	var keys []EventKey
	for k := range a.tallies {
		if match(k) {
			keys = append(keys, k)
		}
	}
	tallies := make([]*eventTally, len(keys))
	for i, k := range keys {
		tallies[i] = a.tallies[k]
		delete(a.tallies, k)
	}
	a.mu.Unlock()

	if a.logger == nil || len(keys) == 0 {
		return
	}
	for i, k := range keys {
		t := tallies[i]
		attrs := []any{
			slog.String("component", k.Component),
			slog.String("event", k.Event),
			slog.Int64("count", t.count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		if k.Run != "" {
			attrs = append(attrs, slog.String("run", k.Run))
		}
		if t.first != NoRecord {
			sort.Ints(t.samples)
			attrs = append(attrs,
				slog.Int("first_record", t.first),
				slog.Int("last_record", t.last),
				slog.Any("sample_records", t.samples))
		}
		for _, f := range t.fields {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}
}
