package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLog(t *testing.T, dir string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	return data
}

func TestInitWritesJSON(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Dir: dir})
	defer Shutdown()

	Logger().Info("index_built", "records", 12)

	records := decodeLines(t, readLog(t, dir))
	require.NotEmpty(t, records)
	assert.Equal(t, "index_built", records[0]["msg"])
	assert.EqualValues(t, 12, records[0]["records"])
}

func TestInitWithoutDirDiscards(t *testing.T) {
	Shutdown()
	Init(Config{})
	defer Shutdown()

	require.NotNil(t, Logger())
	Logger().Info("dropped")
}

func TestLoggerBeforeInit(t *testing.T) {
	Shutdown()
	require.NotNil(t, Logger())
	ForComponent(CompCLI).Info("no_init")
}

func TestForComponentTagsRecords(t *testing.T) {
	Shutdown()
	// Declared before Init, like package-level loggers.
	log := ForComponent(CompSearch).With("session", "s1")

	dir := t.TempDir()
	Init(Config{Dir: dir})
	defer Shutdown()

	log.Info("search_started", "query", "alice")

	records := decodeLines(t, readLog(t, dir))
	require.Len(t, records, 1)
	assert.Equal(t, CompSearch, records[0]["component"])
	assert.Equal(t, "s1", records[0]["session"])
	assert.Equal(t, "alice", records[0]["query"])
}

func TestLevelFiltering(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Dir: dir, Level: "warn"})
	defer Shutdown()

	Logger().Info("filtered")
	Logger().Warn("kept")

	records := decodeLines(t, readLog(t, dir))
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0]["msg"])
}

func TestTextFormat(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Dir: dir, Format: "text"})
	defer Shutdown()

	Logger().Info("text_line")
	assert.Contains(t, string(readLog(t, dir)), "msg=text_line")
}

func TestDumpRingBuffer(t *testing.T) {
	Shutdown()
	dir := t.TempDir()
	Init(Config{Dir: dir, RingBufferSize: 4096})
	defer Shutdown()

	Logger().Error("scan_failed", "error", "boom")

	dump := filepath.Join(dir, "crash.jsonl")
	require.NoError(t, DumpRingBuffer(dump))
	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scan_failed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("warn").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
	assert.Equal(t, "INFO", parseLevel("").String())
}
