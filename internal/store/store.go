// Package store provides random access to the records of an indexed file.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/thoth-viewer/thoth/internal/cache"
	"github.com/thoth-viewer/thoth/internal/index"
	"github.com/thoth-viewer/thoth/internal/logging"
)

var storeLog = logging.ForComponent(logging.CompStore)

var (
	ErrOutOfBounds     = errors.New("record index out of bounds")
	ErrMalformedRecord = errors.New("malformed record")
	ErrClosed          = errors.New("store closed")
)

// DefaultCacheSize is the number of parsed records kept when no option is given.
const DefaultCacheSize = 100

// RecordError reports a failure tied to one record.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %d: %v", e.Index, e.Err) }
func (e *RecordError) Unwrap() error { return e.Err }

type options struct {
	cacheSize int
	shape     index.Shape
}

// Option configures Open.
type Option func(*options)

// WithCacheSize bounds the number of parsed records kept in memory. Zero
// disables caching.
func WithCacheSize(n int) Option { return func(o *options) { o.cacheSize = n } }

// WithShape skips detection and indexes the file as the given shape.
func WithShape(s index.Shape) Option { return func(o *options) { o.shape = s } }

// Store owns an open file and its record index. Len, RawSlice and Get are safe
// for concurrent use.
type Store struct {
	path   string
	file   *os.File
	ix     *index.Index
	cache  *cache.LRU[int, gjson.Result]
	closed atomic.Bool

	parseSf singleflight.Group
}

// Open indexes the file at path and keeps it open for record reads.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	ix, err := index.Build(f, o.shape)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("store: index %s: %w", path, err)
	}

	storeLog.Debug("store_opened",
		slog.String("path", path),
		slog.String("shape", ix.Shape().String()),
		slog.Int("records", ix.Len()),
		slog.Int("cache_size", o.cacheSize))

	return &Store{
		path:  path,
		file:  f,
		ix:    ix,
		cache: cache.New[int, gjson.Result](o.cacheSize),
	}, nil
}

func (s *Store) Len() int           { return s.ix.Len() }
func (s *Store) Path() string       { return s.path }
func (s *Store) Shape() index.Shape { return s.ix.Shape() }

// Index exposes the record boundaries.
func (s *Store) Index() *index.Index { return s.ix }

// CacheLen reports how many parsed records are cached.
func (s *Store) CacheLen() int { return s.cache.Len() }

func (s *Store) CacheStats() cache.Stats { return s.cache.Stats() }

// RawSlice returns a copy of record i's bytes. It does not touch the cache.
func (s *Store) RawSlice(i int) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	e, ok := s.ix.Entry(i)
	if !ok {
		return nil, &RecordError{Index: i, Err: ErrOutOfBounds}
	}
	buf := make([]byte, e.Length)
	if _, err := s.file.ReadAt(buf, int64(e.Offset)); err != nil {
		return nil, &RecordError{Index: i, Err: fmt.Errorf("read: %w", err)}
	}
	return buf, nil
}

// Get returns the parsed value of record i, from the cache when possible.
// Records that are not valid JSON fail with ErrMalformedRecord and are not
// cached.
func (s *Store) Get(i int) (gjson.Result, error) {
	if v, ok := s.cache.Get(i); ok {
		return v, nil
	}
	// Workers missing on the same record share one read and parse.
	v, err, _ := s.parseSf.Do(strconv.Itoa(i), func() (any, error) {
		raw, err := s.RawSlice(i)
		if err != nil {
			return nil, err
		}
		v, err := Parse(raw)
		if err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		s.cache.Put(i, v)
		return v, nil
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return v.(gjson.Result), nil
}

// Parse validates raw as a single JSON value. Offsets reported by the result
// (Result.Index and those of its children) are relative to raw with its
// leading whitespace removed; see Lead.
func Parse(raw []byte) (gjson.Result, error) {
	trimmed := raw[Lead(raw):]
	if !gjson.ValidBytes(trimmed) {
		return gjson.Result{}, ErrMalformedRecord
	}
	return gjson.ParseBytes(trimmed), nil
}

// Lead returns the number of leading whitespace bytes in raw.
func Lead(raw []byte) int {
	return len(raw) - len(bytes.TrimLeft(raw, " \t\r\n"))
}

// Close releases the file. Further reads fail with ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.file.Close()
}
