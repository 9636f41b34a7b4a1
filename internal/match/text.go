package match

import (
	"bytes"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/thoth-viewer/thoth/internal/query"
	"github.com/thoth-viewer/thoth/internal/store"
)

func asciiLower(b []byte) {
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
}

// findAll reports non-overlapping occurrences of needle in hay, stopping when
// fn returns false. needle must already be folded when fold is set.
func findAll(hay, needle []byte, fold bool, fn func(start int) bool) {
	if len(needle) == 0 || len(needle) > len(hay) {
		return
	}
	if fold {
		lowered := make([]byte, len(hay))
		copy(lowered, hay)
		asciiLower(lowered)
		hay = lowered
	}
	for off := 0; off+len(needle) <= len(hay); {
		i := bytes.Index(hay[off:], needle)
		if i < 0 {
			return
		}
		if !fn(off + i) {
			return
		}
		off += i + len(needle)
	}
}

func (m *Matcher) scanText(rec Record) *Result {
	c := &collector{limit: m.maxFragments}
	n := len(m.needle)

	findAll(rec.Raw, m.needle, !m.matchCase, func(start int) bool {
		return c.add(Fragment{
			Target:      TargetRawRecord,
			MatchedText: string(rec.Raw[start : start+n]),
			Range:       ByteRange{Start: uint32(start), End: uint32(start + n)},
		})
	})
	if len(c.frags) == 0 {
		return nil
	}
	preview := BuildPreview(rec.Raw, c.frags[0].Range, m.previewContext)

	// Only records that already matched textually pay for a parse.
	root := strconv.Itoa(rec.Index)
	if !c.dropped {
		if v, ok := m.value(rec); ok {
			w := fieldWalker{m: m, raw: rec.Raw, lead: store.Lead(rec.Raw), c: c}
			w.walk(root, v)
		}
	}
	ensureRootHighlight(c, root)

	return &Result{Fragments: c.result(), Preview: preview}
}

func (m *Matcher) value(rec Record) (gjson.Result, bool) {
	if rec.Value != nil {
		return *rec.Value, true
	}
	v, err := store.Parse(rec.Raw)
	return v, err == nil
}

// fieldWalker attributes matches to keys and scalar values. Offsets come from
// the raw token text, so escaped strings are matched as written in the file.
type fieldWalker struct {
	m    *Matcher
	raw  []byte
	lead int
	c    *collector
}

func (w *fieldWalker) walk(path string, v gjson.Result) bool {
	switch {
	case v.IsObject():
		more := true
		v.ForEach(func(key, value gjson.Result) bool {
			p := query.JoinField(path, key.Str)
			if more = w.token(p, ComponentKey, key); more {
				more = w.walk(p, value)
			}
			return more
		})
		return more
	case v.IsArray():
		i, more := 0, true
		v.ForEach(func(_, value gjson.Result) bool {
			more = w.walk(query.JoinIndex(path, i), value)
			i++
			return more
		})
		return more
	default:
		return w.token(path, ComponentValue, v)
	}
}

// token matches inside one key or scalar. It returns false once a fragment
// has been dropped at the limit.
func (w *fieldWalker) token(path string, comp Component, v gjson.Result) bool {
	start, end := tokenSpan(v)
	start += w.lead
	end += w.lead
	if start < 0 || end > len(w.raw) || start >= end {
		return true
	}
	n := len(w.m.needle)
	ok := true
	findAll(w.raw[start:end], w.m.needle, !w.m.matchCase, func(i int) bool {
		s := start + i
		ok = w.c.add(Fragment{
			Target:      TargetJSONField,
			Component:   comp,
			Path:        path,
			MatchedText: string(w.raw[s : s+n]),
			Range:       ByteRange{Start: uint32(s), End: uint32(s + n)},
		})
		return ok
	})
	return ok
}

// tokenSpan returns the offsets of a token's text relative to the parse
// input, excluding the quotes of strings.
func tokenSpan(v gjson.Result) (int, int) {
	start, end := v.Index, v.Index+len(v.Raw)
	if v.Type == gjson.String && len(v.Raw) >= 2 {
		start++
		end--
	}
	return start, end
}

// ensureRootHighlight marks the whole record when no fragment is rooted at it
// and the limit leaves room. It never counts as a dropped fragment.
func ensureRootHighlight(c *collector, root string) {
	for _, f := range c.frags {
		if f.Path == root {
			return
		}
	}
	if c.full() {
		return
	}
	c.add(Fragment{
		Target:    TargetJSONField,
		Component: ComponentEntireRow,
		Path:      root,
	})
}
