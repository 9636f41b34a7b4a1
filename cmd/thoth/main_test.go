package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoth-viewer/thoth/internal/config"
	"github.com/thoth-viewer/thoth/internal/logging"
	"github.com/thoth-viewer/thoth/internal/match"
	"github.com/thoth-viewer/thoth/internal/query"
	"github.com/thoth-viewer/thoth/internal/store"
)

const sampleNDJSON = `{"id":1,"user":{"name":"Ada"},"tags":["x"]}
{"id":2,"user":{"name":"Grace"},"msg":"timeout while connecting"}
{"id":3, broken
{"id":4,"user":{"name":"ada lovelace"}}
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runCLI executes the command tree with an isolated config directory.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLIIn(t, t.TempDir(), args...)
}

func runCLIIn(t *testing.T, configDir string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvDir, configDir)
	t.Setenv("THOTH_COLOR", "none")
	config.ClearCache()
	t.Cleanup(config.ClearCache)
	t.Cleanup(logging.Shutdown)

	var out, errOut bytes.Buffer
	root := newRootCmd(newApp(&out, &errOut))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestInfo(t *testing.T) {
	path := writeFixture(t, "events.ndjson", sampleNDJSON)

	out, _, err := runCLI(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Shape:    ndjson")
	assert.Contains(t, out, "Records:  4")

	out, _, err = runCLI(t, "info", "--json", path)
	require.NoError(t, err)
	var got infoJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ndjson", got.Shape)
	assert.Equal(t, 4, got.Records)
	assert.Equal(t, int64(len(sampleNDJSON)), got.SizeBytes)
}

func TestInfoForcedShape(t *testing.T) {
	path := writeFixture(t, "doc.json", `[{"a":1},{"a":2}]`)

	out, _, err := runCLI(t, "--shape", "single", "info", "--json", path)
	require.NoError(t, err)
	var got infoJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "single", got.Shape)
	assert.Equal(t, 1, got.Records)

	_, _, err = runCLI(t, "--shape", "yaml", "info", path)
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	path := writeFixture(t, "events.ndjson", sampleNDJSON)

	t.Run("raw", func(t *testing.T) {
		out, _, err := runCLI(t, "get", "--raw", path, "1")
		require.NoError(t, err)
		assert.Equal(t, `{"id":2,"user":{"name":"Grace"},"msg":"timeout while connecting"}`+"\n", out)
	})

	t.Run("pretty", func(t *testing.T) {
		out, _, err := runCLI(t, "get", path, "0")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "Ada"`)
	})

	t.Run("malformed record", func(t *testing.T) {
		_, _, err := runCLI(t, "get", path, "2")
		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrMalformedRecord)
	})

	t.Run("out of bounds", func(t *testing.T) {
		_, _, err := runCLI(t, "get", path, "40")
		assert.ErrorIs(t, err, store.ErrOutOfBounds)
	})

	t.Run("highlight", func(t *testing.T) {
		out, _, err := runCLI(t, "get", "--highlight", "grace", path, "1")
		require.NoError(t, err)
		assert.Equal(t, `{"id":2,"user":{"name":"Grace"},"msg":"timeout while connecting"}`+"\n", out)

		out, _, err = runCLI(t, "get", "--highlight", "nothing-here", path, "1")
		require.NoError(t, err)
		assert.Contains(t, out, "no matches")
	})

	t.Run("bad index", func(t *testing.T) {
		_, _, err := runCLI(t, "get", path, "-1")
		assert.Error(t, err)
	})
}

func TestSearchText(t *testing.T) {
	path := writeFixture(t, "events.ndjson", sampleNDJSON)

	out, _, err := runCLI(t, "search", path, "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "#0")
	assert.Contains(t, out, "#3")
	assert.NotContains(t, out, "#1 ")
	assert.Contains(t, out, "2 of 4 records matched")
	assert.Contains(t, out, "0.user.name")

	out, _, err = runCLI(t, "search", "--match-case", path, "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 4 records matched")
}

func TestSearchJSON(t *testing.T) {
	path := writeFixture(t, "events.ndjson", sampleNDJSON)

	out, _, err := runCLI(t, "search", "--json", path, `$.user.name = "grace"`)
	require.NoError(t, err)

	var got searchJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "path", got.Kind)
	assert.Equal(t, 1, got.Matched)
	assert.Equal(t, 1, got.Malformed)
	require.Len(t, got.Hits, 1)
	assert.Equal(t, 1, got.Hits[0].Index)
	require.Len(t, got.Hits[0].Fragments, 1)
	assert.Equal(t, "user.name", got.Hits[0].Fragments[0].Path)
	assert.Equal(t, "Grace", got.Hits[0].Fragments[0].Text)
	assert.NotEmpty(t, got.ID)
}

func TestSearchRangeAndLimit(t *testing.T) {
	path := writeFixture(t, "events.ndjson", sampleNDJSON)

	out, _, err := runCLI(t, "search", "--json", "--from", "1", path, "id")
	require.NoError(t, err)
	var got searchJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Scanned)
	require.NotEmpty(t, got.Hits)
	assert.Equal(t, 1, got.Hits[0].Index)

	out, _, err = runCLI(t, "search", "--limit", "1", path, "id")
	require.NoError(t, err)
	assert.Contains(t, out, "… 3 more")
}

func TestSearchSyntaxError(t *testing.T) {
	path := writeFixture(t, "events.ndjson", sampleNDJSON)

	_, _, err := runCLI(t, "search", path, "$.a[")
	assert.ErrorIs(t, err, query.ErrInvalidQuerySyntax)
}

func TestPaths(t *testing.T) {
	path := writeFixture(t, "events.ndjson", sampleNDJSON)

	out, _, err := runCLI(t, "paths", path, "0")
	require.NoError(t, err)
	assert.Equal(t, "$.id\n$.user\n$.user.name\n$.tags\n$.tags[0]\n", out)

	out, _, err = runCLI(t, "paths", path, "0", "usnm")
	require.NoError(t, err)
	assert.Equal(t, "$.user.name\n", out)
}

func TestRecent(t *testing.T) {
	dir := t.TempDir()
	first := writeFixture(t, "first.ndjson", sampleNDJSON)
	second := writeFixture(t, "second.json", `[1,2,3]`)

	out, _, err := runCLIIn(t, dir, "recent")
	require.NoError(t, err)
	assert.Equal(t, "No recent files\n", out)

	_, _, err = runCLIIn(t, dir, "info", first)
	require.NoError(t, err)
	_, _, err = runCLIIn(t, dir, "info", second)
	require.NoError(t, err)

	out, _, err = runCLIIn(t, dir, "recent", "--json")
	require.NoError(t, err)
	var got []recentJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, second, got[0].Path)
	assert.Equal(t, "array", got[0].Shape)
	assert.Equal(t, 3, got[0].Records)
	assert.Equal(t, first, got[1].Path)

	_, _, err = runCLIIn(t, dir, "recent", "--clear")
	require.NoError(t, err)
	out, _, err = runCLIIn(t, dir, "recent")
	require.NoError(t, err)
	assert.Equal(t, "No recent files\n", out)
}

func TestRecentDisabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("[recent]\nenabled = false\n"), 0o644))
	path := writeFixture(t, "a.ndjson", sampleNDJSON)

	_, _, err := runCLIIn(t, dir, "info", path)
	require.NoError(t, err)
	out, _, err := runCLIIn(t, dir, "recent")
	require.NoError(t, err)
	assert.Equal(t, "No recent files\n", out)
}

func TestTruncateLeft(t *testing.T) {
	assert.Equal(t, "abc", truncateLeft("abc", 5))
	assert.Equal(t, "…def", truncateLeft("abcdef", 4))
	assert.Equal(t, "", truncateLeft("abcdef", 0))
}

func TestRenderPreview(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	p := match.Preview{Before: "…the quick ", Match: "brown", After: " fox jumps over…"}
	assert.Equal(t, p.String(), renderPreview(p, 80))

	narrow := renderPreview(p, 16)
	assert.Contains(t, narrow, "brown")
	assert.LessOrEqual(t, runewidth.StringWidth(narrow), 16)
}

func TestHighlightRawMergesOverlaps(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	raw := []byte(`{"a":"abcabc"}`)
	frags := []match.Fragment{
		{Target: match.TargetRawRecord, Range: match.ByteRange{Start: 9, End: 12}},
		{Target: match.TargetRawRecord, Range: match.ByteRange{Start: 6, End: 9}},
		{Target: match.TargetJSONField, Range: match.ByteRange{Start: 6, End: 12}},
	}
	assert.Equal(t, string(raw), highlightRaw(raw, frags))
}
