package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec), "line %q", line)
		out = append(out, rec)
	}
	return out
}

func TestAggregatorSummarisesOnStop(t *testing.T) {
	var buf bytes.Buffer
	agg := NewAggregator(slog.New(slog.NewJSONHandler(&buf, nil)), 60)
	agg.Start()

	malformed := EventKey{Component: CompScan, Event: "malformed_record", Run: "r1"}
	for _, i := range []int{9, 3, 12, 40, 7, 5, 1} {
		agg.Record(malformed, i, slog.String("query", "$.a"))
	}
	evict := EventKey{Component: CompStore, Event: "cache_evict"}
	agg.Record(evict, NoRecord)
	assert.Equal(t, int64(7), agg.Pending(malformed))

	agg.Stop()
	agg.Stop()

	records := decodeLines(t, buf.Bytes())
	require.Len(t, records, 2)

	byEvent := map[string]map[string]any{}
	for _, r := range records {
		assert.Equal(t, "event_summary", r["msg"])
		byEvent[r["event"].(string)] = r
	}
	m := byEvent["malformed_record"]
	require.NotNil(t, m)
	assert.Equal(t, CompScan, m["component"])
	assert.Equal(t, "r1", m["run"])
	assert.EqualValues(t, 7, m["count"])
	assert.EqualValues(t, 1, m["first_record"])
	assert.EqualValues(t, 40, m["last_record"])
	assert.Equal(t, []any{3.0, 7.0, 9.0, 12.0, 40.0}, m["sample_records"])
	assert.Equal(t, "$.a", m["query"])

	e := byEvent["cache_evict"]
	assert.EqualValues(t, 1, e["count"])
	assert.NotContains(t, e, "first_record")
	assert.NotContains(t, e, "run")
	assert.Zero(t, agg.Pending(malformed))
}

func TestAggregatorFlushRun(t *testing.T) {
	var buf bytes.Buffer
	agg := NewAggregator(slog.New(slog.NewJSONHandler(&buf, nil)), 60)

	a := EventKey{Component: CompScan, Event: "malformed_record", Run: "a"}
	b := EventKey{Component: CompScan, Event: "malformed_record", Run: "b"}
	agg.Record(a, 1)
	agg.Record(b, 2)
	agg.Record(b, 4)

	agg.FlushRun("b")
	records := decodeLines(t, buf.Bytes())
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0]["run"])
	assert.EqualValues(t, 2, records[0]["count"])
	assert.Zero(t, agg.Pending(b))
	assert.Equal(t, int64(1), agg.Pending(a))

	agg.FlushRun("missing")
	assert.Len(t, decodeLines(t, buf.Bytes()), 1)
}

func TestAggregatorNilLogger(t *testing.T) {
	agg := NewAggregator(nil, 1)
	agg.Start()
	key := EventKey{Component: CompScan, Event: "malformed_record"}
	agg.Record(key, 3)
	agg.Stop()
	assert.Zero(t, agg.Pending(key))
}
