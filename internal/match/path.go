package match

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/thoth-viewer/thoth/internal/store"
)

func (m *Matcher) scanPath(rec Record) (*Result, error) {
	v, ok := m.value(rec)
	if !ok {
		return nil, store.ErrMalformedRecord
	}
	nodes := m.path.Evaluate(v, m.matchCase)
	if len(nodes) == 0 {
		return nil, nil
	}

	lead := store.Lead(rec.Raw)
	c := &collector{limit: m.maxFragments}
	for _, n := range nodes {
		f := Fragment{Target: TargetJSONField, Path: n.Path}
		switch {
		case n.Value.IsObject() || n.Value.IsArray():
			f.Component = ComponentEntireRow
			f.MatchedText = Summary(n.Value)
		default:
			f.Component = ComponentValue
			f.MatchedText = scalarText(n.Value)
			start, end := tokenSpan(n.Value)
			start += lead
			end += lead
			if start >= 0 && end <= len(rec.Raw) && start <= end {
				f.Range = ByteRange{Start: uint32(start), End: uint32(end)}
			}
		}
		if !c.add(f) {
			break
		}
	}

	frags := c.result()
	res := &Result{Fragments: frags}
	for _, f := range frags {
		if !f.Range.Empty() {
			res.Preview = BuildPreview(rec.Raw, f.Range, m.previewContext)
			return res, nil
		}
	}
	res.Preview = Preview{Match: frags[0].MatchedText}
	return res, nil
}

func scalarText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return v.Raw
}

// Summary renders a composite value as its size: "{3}" for an object with
// three keys, "[2]" for a two element array. Scalars render as written.
func Summary(v gjson.Result) string {
	if !v.IsObject() && !v.IsArray() {
		return v.Raw
	}
	n := 0
	v.ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})
	if v.IsObject() {
		return "{" + strconv.Itoa(n) + "}"
	}
	return "[" + strconv.Itoa(n) + "]"
}
