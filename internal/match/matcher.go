// Package match turns one record's bytes into highlight fragments for either a
// free-text pattern or a structured path query.
package match

import (
	"github.com/tidwall/gjson"

	"github.com/thoth-viewer/thoth/internal/query"
)

const (
	DefaultMaxFragments   = 64
	DefaultPreviewContext = 36
)

// Kind selects the matcher variant.
type Kind int

const (
	KindText Kind = iota
	KindPath
)

// Record is the input to one matcher invocation.
type Record struct {
	Index int
	Raw   []byte
	// Value is the already parsed record, if the caller has one. It must come
	// from store.Parse(Raw) so that offsets line up.
	Value *gjson.Result
}

// Result is what a matcher found in one record.
type Result struct {
	Fragments []Fragment
	Preview   Preview
}

// Matcher is a closed variant over the two query kinds. It holds no mutable
// state, so one Matcher may be shared by any number of goroutines.
type Matcher struct {
	kind           Kind
	needle         []byte
	matchCase      bool
	path           *query.Path
	maxFragments   int
	previewContext int
}

type Option func(*Matcher)

// WithMaxFragments sets the per-record fragment limit.
func WithMaxFragments(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxFragments = n
		}
	}
}

// WithPreviewContext sets how many bytes of context surround a preview.
func WithPreviewContext(n int) Option {
	return func(m *Matcher) {
		if n >= 0 {
			m.previewContext = n
		}
	}
}

// New builds the matcher for a parsed query.
func New(q query.Query, opts ...Option) *Matcher {
	m := &Matcher{
		matchCase:      q.MatchCase,
		maxFragments:   DefaultMaxFragments,
		previewContext: DefaultPreviewContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	switch q.Kind {
	case query.KindPath:
		m.kind = KindPath
		m.path = q.Path
	default:
		m.kind = KindText
		m.needle = []byte(q.Text)
		if !m.matchCase {
			asciiLower(m.needle)
		}
	}
	return m
}

func (m *Matcher) Kind() Kind { return m.kind }

// NeedsValue reports whether ScanRecord always parses the record, in which
// case callers should supply a cached Value when they can.
func (m *Matcher) NeedsValue() bool { return m.kind == KindPath }

func (m *Matcher) MaxFragments() int { return m.maxFragments }

// ScanRecord matches one record. A nil result means no match. Path queries
// fail with store.ErrMalformedRecord when the record cannot be parsed; free
// text never fails.
func (m *Matcher) ScanRecord(rec Record) (*Result, error) {
	switch m.kind {
	case KindPath:
		return m.scanPath(rec)
	default:
		return m.scanText(rec), nil
	}
}
