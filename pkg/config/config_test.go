package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/geovec/pkg/compression"
	"github.com/ajitpratap0/geovec/pkg/export"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geovec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewDefault()
	require.NoError(t, cfg.Validate())

	opts := cfg.DataStoreOptions()
	assert.Equal(t, 4, opts.Shards)
	assert.Equal(t, compression.Snappy, opts.Compression.Algorithm)

	vc, err := cfg.VectorConfig()
	require.NoError(t, err)
	assert.Equal(t, sfvector.FIDFull, vc.Encoding.FIDs)
	assert.Equal(t, sfvector.Double, vc.Encoding.Precision)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewDefault(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "cache:6380")
	path := writeFile(t, `
store:
  type: redis
  shards: 8
  redis:
    address: ${TEST_REDIS_ADDR}
    namespace: roads
compression:
  algorithm: zstd
vector:
  fids: hashed
  precision: float
export:
  format: parquet
  compression: gzip
  s3:
    bucket: exports
tracing:
  batch_timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreRedis, cfg.Store.Type)
	assert.Equal(t, 8, cfg.Store.Shards)
	assert.Equal(t, "cache:6380", cfg.Store.Redis.Address)
	assert.Equal(t, "roads", cfg.Store.Redis.Namespace)
	// Untouched keys keep their defaults.
	assert.Equal(t, 500, cfg.Store.Redis.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Store.Cassandra.ConnectionTimeout)
	assert.Equal(t, compression.Zstd, cfg.Compression.Algorithm)
	assert.Equal(t, export.Parquet, cfg.ExportOptions().Format)
	assert.Equal(t, "exports", cfg.Export.S3.Bucket)
	assert.Equal(t, 2*time.Second, cfg.Tracing.BatchTimeout)

	vc, err := cfg.VectorConfig()
	require.NoError(t, err)
	assert.Equal(t, sfvector.FIDHashed, vc.Encoding.FIDs)
	assert.Equal(t, sfvector.Float, vc.Encoding.Precision)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "store:\n  type: memory\nlogging:\n  level: info\n")
	t.Setenv("GEOVEC_STORE_TYPE", "cassandra")
	t.Setenv("GEOVEC_LOGGING_LEVEL", "debug")
	t.Setenv("GEOVEC_STORE_SHARDS", "16")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreCassandra, cfg.Store.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 16, cfg.Store.Shards)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))

	_, err = Load(writeFile(t, "store: [unclosed"))
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))
}

func TestSaveAndLoad(t *testing.T) {
	cfg := NewDefault()
	cfg.Store.Type = StoreCassandra
	cfg.Store.Cassandra.Hosts = []string{"cass-1", "cass-2"}
	cfg.Export.Format = string(export.ArrowFile)
	cfg.Export.Compression = "lz4"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown store", func(c *Config) { c.Store.Type = "dynamo" }},
		{"zero shards", func(c *Config) { c.Store.Shards = 0 }},
		{"too many shards", func(c *Config) { c.Store.Shards = 256 }},
		{"zero concurrency", func(c *Config) { c.Store.Concurrency = 0 }},
		{"redis without address", func(c *Config) {
			c.Store.Type = StoreRedis
			c.Store.Redis.Address = ""
		}},
		{"cassandra without hosts", func(c *Config) {
			c.Store.Type = StoreCassandra
			c.Store.Cassandra.Hosts = nil
		}},
		{"postgres without url", func(c *Config) {
			c.Store.Type = StorePostgres
			c.Store.Postgres.URL = ""
		}},
		{"bad compression", func(c *Config) { c.Compression.Algorithm = "rar" }},
		{"bad precision", func(c *Config) { c.Vector.Precision = "half" }},
		{"bad fids", func(c *Config) { c.Vector.FIDs = "short" }},
		{"negative capacity", func(c *Config) { c.Vector.Capacity = -1 }},
		{"bad export format", func(c *Config) { c.Export.Format = "csv" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig), "got %v", err)
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_BUCKET", "tiles")
	assert.Equal(t, "bucket: tiles/x", substituteEnvVars("bucket: ${TEST_BUCKET}/x"))
	assert.Equal(t, "a:  b", substituteEnvVars("a: ${TEST_UNSET_VAR_X} b"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}
