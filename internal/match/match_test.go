package match

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoth-viewer/thoth/internal/query"
	"github.com/thoth-viewer/thoth/internal/store"
)

func mustMatcher(t *testing.T, input string, matchCase bool, opts ...Option) *Matcher {
	t.Helper()
	q, err := query.Parse(input, matchCase)
	require.NoError(t, err)
	return New(q, opts...)
}

func scan(t *testing.T, m *Matcher, index int, raw string) *Result {
	t.Helper()
	res, err := m.ScanRecord(Record{Index: index, Raw: []byte(raw)})
	require.NoError(t, err)
	return res
}

func TestTextNoMatch(t *testing.T) {
	m := mustMatcher(t, "zebra", false)
	assert.Nil(t, scan(t, m, 0, `{"animal":"horse"}`))
	assert.Equal(t, KindText, m.Kind())
	assert.False(t, m.NeedsValue())
}

func TestTextFragments(t *testing.T) {
	raw := `{"name":"Alice","friend":{"name":"ALICE"}}`
	m := mustMatcher(t, "alice", false)
	res := scan(t, m, 7, raw)
	require.NotNil(t, res)

	var rawFrags, fieldFrags []Fragment
	for _, f := range res.Fragments {
		if f.Target == TargetRawRecord {
			rawFrags = append(rawFrags, f)
		} else {
			fieldFrags = append(fieldFrags, f)
		}
	}
	require.Len(t, rawFrags, 2)
	assert.Equal(t, "Alice", rawFrags[0].MatchedText)
	assert.Equal(t, "ALICE", rawFrags[1].MatchedText)
	for _, f := range res.Fragments {
		if !f.Range.Empty() {
			assert.True(t, strings.EqualFold("alice", raw[f.Range.Start:f.Range.End]))
		}
	}

	require.Len(t, fieldFrags, 3)
	assert.Equal(t, "7.name", fieldFrags[0].Path)
	assert.Equal(t, ComponentValue, fieldFrags[0].Component)
	assert.Equal(t, "7.friend.name", fieldFrags[1].Path)
	assert.Equal(t, ComponentEntireRow, fieldFrags[2].Component)
	assert.Equal(t, "7", fieldFrags[2].Path)
	assert.False(t, res.Fragments[0].CapApplied)
}

func TestTextMatchCase(t *testing.T) {
	m := mustMatcher(t, "Alice", true)
	res := scan(t, m, 0, `{"a":"alice","b":"Alice"}`)
	require.NotNil(t, res)
	assert.Equal(t, uint32(18), res.Fragments[0].Range.Start)
	assert.Nil(t, scan(t, m, 0, `{"a":"ALICE"}`))
}

func TestTextKeysAndScalars(t *testing.T) {
	m := mustMatcher(t, "tr", false)
	res := scan(t, m, 2, ` {"true_key": [true, "str"], "n": null}`)
	require.NotNil(t, res)

	got := map[string]Component{}
	for _, f := range res.Fragments {
		if f.Target == TargetJSONField {
			got[f.Path] = f.Component
		}
	}
	assert.Equal(t, map[string]Component{
		"2.true_key":    ComponentKey,
		"2.true_key[0]": ComponentValue,
		"2.true_key[1]": ComponentValue,
		"2":             ComponentEntireRow,
	}, got)

	for _, f := range res.Fragments {
		if f.Component == ComponentKey || f.Component == ComponentValue {
			assert.Equal(t, "tr", strings.ToLower(` {"true_key": [true, "str"], "n": null}`[f.Range.Start:f.Range.End]), f.Path)
		}
	}
}

func TestTextScalarRecordRootPath(t *testing.T) {
	m := mustMatcher(t, "42", false)
	res := scan(t, m, 3, `42`)
	require.NotNil(t, res)
	for _, f := range res.Fragments {
		assert.NotEqual(t, ComponentEntireRow, f.Component)
	}
	assert.Equal(t, "3", res.Fragments[1].Path)
}

func TestTextMalformedRecordStillMatches(t *testing.T) {
	m := mustMatcher(t, "oops", false)
	res := scan(t, m, 0, `{"oops": `)
	require.NotNil(t, res)
	require.Len(t, res.Fragments, 2)
	assert.Equal(t, TargetRawRecord, res.Fragments[0].Target)
	assert.Equal(t, ComponentEntireRow, res.Fragments[1].Component)
}

func TestTextNonOverlapping(t *testing.T) {
	m := mustMatcher(t, "aa", false)
	res := scan(t, m, 0, `"aaaaa"`)
	require.NotNil(t, res)
	var starts []uint32
	for _, f := range res.Fragments {
		if f.Target == TargetRawRecord {
			starts = append(starts, f.Range.Start)
		}
	}
	assert.Equal(t, []uint32{1, 3}, starts)
}

func TestFragmentCap(t *testing.T) {
	raw := `"` + strings.Repeat("x ", 200) + `"`
	m := mustMatcher(t, "x", false)
	res := scan(t, m, 0, raw)
	require.NotNil(t, res)
	assert.Len(t, res.Fragments, DefaultMaxFragments)
	for _, f := range res.Fragments {
		assert.True(t, f.CapApplied)
	}

	m = mustMatcher(t, "x", false, WithMaxFragments(5))
	res = scan(t, m, 0, raw)
	assert.Len(t, res.Fragments, 5)
}

func TestFragmentCapExactlyAtLimit(t *testing.T) {
	t.Run("path query", func(t *testing.T) {
		raw := `{"a":[1,2,3]}`
		res := scan(t, mustMatcher(t, "$.a[*]", false, WithMaxFragments(3)), 0, raw)
		require.NotNil(t, res)
		require.Len(t, res.Fragments, 3)
		for _, f := range res.Fragments {
			assert.False(t, f.CapApplied)
		}

		res = scan(t, mustMatcher(t, "$.a[*]", false, WithMaxFragments(2)), 0, raw)
		require.Len(t, res.Fragments, 2)
		assert.True(t, res.Fragments[0].CapApplied)
		assert.True(t, res.Fragments[1].CapApplied)
	})

	t.Run("free text", func(t *testing.T) {
		// Three raw hits plus three hits inside the root string value.
		raw := `"x x x"`
		res := scan(t, mustMatcher(t, "x", false, WithMaxFragments(6)), 0, raw)
		require.NotNil(t, res)
		require.Len(t, res.Fragments, 6)
		for _, f := range res.Fragments {
			assert.False(t, f.CapApplied)
		}

		res = scan(t, mustMatcher(t, "x", false, WithMaxFragments(5)), 0, raw)
		require.Len(t, res.Fragments, 5)
		assert.True(t, res.Fragments[4].CapApplied)
	})
}

func TestFragmentCapAcrossFieldPass(t *testing.T) {
	m := mustMatcher(t, "k", false, WithMaxFragments(4))
	res := scan(t, m, 0, `{"k1":1,"k2":2,"k3":3}`)
	require.NotNil(t, res)
	assert.Len(t, res.Fragments, 4)
	assert.Equal(t, TargetJSONField, res.Fragments[3].Target)
	assert.Equal(t, "0.k1", res.Fragments[3].Path)
	assert.True(t, res.Fragments[0].CapApplied)
}

func TestPathMatcher(t *testing.T) {
	raw := `{"a":[{"x":1},{"x":2}]}`
	m := mustMatcher(t, "$.a[*].x", false)
	assert.True(t, m.NeedsValue())

	res := scan(t, m, 0, raw)
	require.NotNil(t, res)
	require.Len(t, res.Fragments, 2)
	assert.Equal(t, "a[0].x", res.Fragments[0].Path)
	assert.Equal(t, "a[1].x", res.Fragments[1].Path)
	assert.Equal(t, "1", res.Fragments[0].MatchedText)
	assert.Equal(t, "2", res.Fragments[1].MatchedText)
	r := res.Fragments[1].Range
	assert.Equal(t, "2", raw[r.Start:r.End])
	assert.Equal(t, ComponentValue, res.Fragments[0].Component)

	m = mustMatcher(t, "$.a[*].x = 2", false)
	res = scan(t, m, 0, raw)
	require.NotNil(t, res)
	require.Len(t, res.Fragments, 1)
	assert.Equal(t, "a[1].x", res.Fragments[0].Path)
}

func TestPathMatcherStringsAndComposites(t *testing.T) {
	raw := "  {\"user\": {\"name\": \"Al\\\"ice\", \"tags\": [1,2,3]}}"
	m := mustMatcher(t, "$.user.*", false)
	res := scan(t, m, 0, raw)
	require.NotNil(t, res)
	require.Len(t, res.Fragments, 2)

	name := res.Fragments[0]
	assert.Equal(t, `Al"ice`, name.MatchedText)
	assert.Equal(t, `Al\"ice`, raw[name.Range.Start:name.Range.End])

	tags := res.Fragments[1]
	assert.Equal(t, ComponentEntireRow, tags.Component)
	assert.Equal(t, "[3]", tags.MatchedText)
	assert.True(t, tags.Range.Empty())
	assert.Equal(t, `Al\"ice`, res.Preview.Match)
}

func TestPathMatcherCompositeOnly(t *testing.T) {
	m := mustMatcher(t, "$.o", false)
	res := scan(t, m, 0, `{"o":{"a":1,"b":2}}`)
	require.NotNil(t, res)
	assert.Equal(t, "{2}", res.Preview.Match)
}

func TestPathMatcherMalformed(t *testing.T) {
	m := mustMatcher(t, "$.a", false)
	_, err := m.ScanRecord(Record{Raw: []byte(`{"a":`)})
	assert.True(t, errors.Is(err, store.ErrMalformedRecord))

	res, err := m.ScanRecord(Record{Raw: []byte(`{"b":1}`)})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestPathMatcherUsesSuppliedValue(t *testing.T) {
	raw := []byte(` {"a": "x"}`)
	v, err := store.Parse(raw)
	require.NoError(t, err)

	m := mustMatcher(t, "$.a", false)
	res, err := m.ScanRecord(Record{Raw: raw, Value: &v})
	require.NoError(t, err)
	require.NotNil(t, res)
	r := res.Fragments[0].Range
	assert.Equal(t, "x", string(raw[r.Start:r.End]))
}

func TestTextIdempotent(t *testing.T) {
	raw := `{"msg":"error: disk error","code":"ERR"}`
	m := mustMatcher(t, "err", false)
	a := scan(t, m, 1, raw)
	b := scan(t, m, 1, raw)
	assert.Equal(t, a, b)
}
