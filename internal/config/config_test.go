package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 128, cfg.Index.PageSize)
	assert.Equal(t, "maxscore", cfg.Search.Algorithm)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparsego.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  pageSize: 64
  compression: zstd
  verifyChecksum: true
search:
  topK: 25
  algorithm: wand
logging:
  level: debug
  format: json
server:
  readTimeout: 3s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Index.PageSize)
	assert.Equal(t, "zstd", cfg.Index.Compression)
	assert.True(t, cfg.Index.VerifyChecksum)
	assert.Equal(t, 25, cfg.Search.TopK)
	assert.Equal(t, "wand", cfg.Search.Algorithm)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr, "unset fields keep defaults")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPARSEGO_INDEX_PAGE_SIZE", "32")
	t.Setenv("SPARSEGO_SEARCH_ALGORITHM", "wand")
	t.Setenv("SPARSEGO_INDEX_IN_MEMORY", "true")
	t.Setenv("SPARSEGO_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("SPARSEGO_SEARCH_TOP_K", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Index.PageSize)
	assert.Equal(t, "wand", cfg.Search.Algorithm)
	assert.True(t, cfg.Index.InMemory)
	assert.Equal(t, "minio:9000", cfg.Storage.MinIO.Endpoint)
	assert.Equal(t, 10, cfg.Search.TopK, "unparsable values are ignored")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [unclosed"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("index:\n  pageSize: 0\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "pageSize")

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "logging.format")
}
