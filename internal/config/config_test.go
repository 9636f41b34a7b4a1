package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Search.MatchCase)
	assert.Equal(t, 64, cfg.Search.GetMaxFragments())
	assert.Equal(t, 36, cfg.Search.GetPreviewContext())
	assert.Equal(t, 256, cfg.Search.GetBatchSize())
	assert.Equal(t, 4.0, cfg.Search.GetProgressPerSecond())
	assert.Equal(t, 100, cfg.Performance.GetCacheSize())
	assert.Equal(t, "auto", cfg.Index.Shape)
	assert.True(t, cfg.Logs.GetCompress())
	assert.True(t, cfg.Recent.GetEnabled())
	assert.Equal(t, 10, cfg.Recent.GetMaxFiles())
	assert.Equal(t, 300, cfg.Watch.GetDebounceMS())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[search]
match_case = true
max_fragments_per_record = 8
preview_context_bytes = 0

[performance]
cache_size = 0

[index]
shape = "ndjson"

[recent]
enabled = false
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Search.MatchCase)
	assert.Equal(t, 8, cfg.Search.GetMaxFragments())
	assert.Equal(t, 0, cfg.Search.GetPreviewContext())
	assert.Equal(t, 0, cfg.Performance.GetCacheSize())
	assert.Equal(t, "ndjson", cfg.Index.Shape)
	assert.False(t, cfg.Recent.GetEnabled())
	assert.Equal(t, 300, cfg.Watch.GetDebounceMS())
}

func TestLoadFileMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(filepath.Join(dir, "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[search\nmatch_case = "), 0o600))
	cfg, err = LoadFile(bad)
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveAndLoadCached(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDir, dir)
	ClearCache()
	defer ClearCache()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	size := 7
	cfg = Default()
	cfg.Performance.CacheSize = &size
	cfg.Search.Workers = 3
	require.NoError(t, Save(cfg))

	_, err = os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Performance.GetCacheSize())
	assert.Equal(t, 3, loaded.Search.Workers)

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, loaded, again)

	reloaded, err := Reload()
	require.NoError(t, err)
	assert.NotSame(t, loaded, reloaded)
}

func TestPathUsesEnv(t *testing.T) {
	t.Setenv(EnvDir, "/tmp/thoth-test")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/thoth-test", FileName), p)
}
