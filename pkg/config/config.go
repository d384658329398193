// Package config provides the geovec configuration: one Config structure
// with a section per component, loaded from YAML with GEOVEC_* environment
// overrides.
//
// The configuration is organized into logical sections:
//   - Store: the key-value platform and attribute index layout
//   - Compression: how stored records are compressed
//   - Vector: capacity and encoding of feature vectors
//   - Export: file format and the S3 or GCS destination of exports
//   - Logging and Tracing
//
// Example usage:
//
//	cfg, err := config.Load("geovec.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Store.Type = config.StoreRedis
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/geovec/pkg/compression"
	"github.com/ajitpratap0/geovec/pkg/datastore"
	"github.com/ajitpratap0/geovec/pkg/export"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/index"
	"github.com/ajitpratap0/geovec/pkg/logger"
	"github.com/ajitpratap0/geovec/pkg/observability"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
	"github.com/ajitpratap0/geovec/pkg/store/cassandra"
	"github.com/ajitpratap0/geovec/pkg/store/postgres"
	"github.com/ajitpratap0/geovec/pkg/store/redisstore"
)

// EnvPrefix prefixes environment overrides, e.g. GEOVEC_STORE_TYPE.
const EnvPrefix = "GEOVEC"

// Store platform names.
const (
	StoreMemory    = "memory"
	StoreRedis     = "redis"
	StoreCassandra = "cassandra"
	StorePostgres  = "postgres"
)

// Config is the complete geovec configuration.
type Config struct {
	Store       StoreConfig          `yaml:"store" mapstructure:"store"`
	Compression compression.Config   `yaml:"compression" mapstructure:"compression"`
	Vector      VectorConfig         `yaml:"vector" mapstructure:"vector"`
	Export      ExportConfig         `yaml:"export" mapstructure:"export"`
	Logging     logger.Config        `yaml:"logging" mapstructure:"logging"`
	Tracing     observability.Config `yaml:"tracing" mapstructure:"tracing"`
}

// StoreConfig selects the platform and the index layout.
type StoreConfig struct {
	// Type is memory, redis, cassandra or postgres.
	Type string `yaml:"type" mapstructure:"type"`
	// Shards is the attribute index shard count.
	Shards int `yaml:"shards" mapstructure:"shards"`
	// Concurrency bounds concurrent range scans.
	Concurrency int                `yaml:"concurrency" mapstructure:"concurrency"`
	Redis       redisstore.Options `yaml:"redis" mapstructure:"redis"`
	Cassandra   cassandra.Config   `yaml:"cassandra" mapstructure:"cassandra"`
	Postgres    postgres.Config    `yaml:"postgres" mapstructure:"postgres"`
}

// VectorConfig configures feature vectors built by queries and conversions.
type VectorConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
	// FIDs is full, hashed or none.
	FIDs string `yaml:"fids" mapstructure:"fids"`
	// Precision is float or double.
	Precision string `yaml:"precision" mapstructure:"precision"`
}

// ExportConfig configures file exports.
type ExportConfig struct {
	Format       string          `yaml:"format" mapstructure:"format"`
	Compression  string          `yaml:"compression" mapstructure:"compression"`
	RowGroupSize int64           `yaml:"row_group_size" mapstructure:"row_group_size"`
	S3           export.S3Config  `yaml:"s3" mapstructure:"s3"`
	GCS          export.GCSConfig `yaml:"gcs" mapstructure:"gcs"`
}

// NewDefault returns an in-memory configuration with defaults for every
// section.
func NewDefault() *Config {
	return &Config{
		Store: StoreConfig{
			Type:        StoreMemory,
			Shards:      index.DefaultShards,
			Concurrency: datastore.DefaultConcurrency,
			Redis:       redisstore.DefaultOptions(),
			Cassandra:   cassandra.DefaultConfig(),
			Postgres:    postgres.DefaultConfig(),
		},
		Compression: *compression.DefaultConfig(),
		Vector: VectorConfig{
			Capacity:  sfvector.DefaultConfig().Capacity,
			FIDs:      sfvector.FIDFull.String(),
			Precision: sfvector.Double.String(),
		},
		Export: ExportConfig{
			Format:      string(export.ArrowStream),
			Compression: "none",
		},
		Logging: logger.Config{
			Level:       "info",
			Encoding:    "console",
			OutputPaths: []string{"stderr"},
		},
		Tracing: observability.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults and applies GEOVEC_*
// environment overrides. ${VAR} references in the file are expanded. An
// empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only resolves environment overrides for keys it knows, so the
	// defaults are loaded as a config layer first.
	defaults, err := yaml.Marshal(NewDefault())
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeInternal, "cannot marshal defaults")
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeInternal, "cannot load defaults")
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
		if err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
		content := substituteEnvVars(string(data))
		if err := v.MergeConfig(strings.NewReader(content)); err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "failed to parse YAML").
				WithDetail("path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "failed to decode configuration")
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeInternal, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "failed to write config file").WithDetail("path", path)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case StoreMemory, StoreRedis, StoreCassandra, StorePostgres:
	default:
		return geoerrors.Newf(geoerrors.ErrorTypeConfig, "unknown store type %q", c.Store.Type)
	}
	if c.Store.Shards < 1 || c.Store.Shards > 255 {
		return geoerrors.Newf(geoerrors.ErrorTypeConfig, "shards must be between 1 and 255, got %d", c.Store.Shards)
	}
	if c.Store.Concurrency < 1 {
		return geoerrors.Newf(geoerrors.ErrorTypeConfig, "concurrency must be positive, got %d", c.Store.Concurrency)
	}
	if c.Store.Type == StoreRedis && c.Store.Redis.Address == "" {
		return geoerrors.New(geoerrors.ErrorTypeConfig, "redis address is required")
	}
	if c.Store.Type == StoreCassandra && len(c.Store.Cassandra.Hosts) == 0 {
		return geoerrors.New(geoerrors.ErrorTypeConfig, "cassandra hosts are required")
	}
	if c.Store.Type == StorePostgres && c.Store.Postgres.URL == "" {
		return geoerrors.New(geoerrors.ErrorTypeConfig, "postgres url is required")
	}

	if _, err := compression.NewCompressor(&c.Compression); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "invalid compression")
	}
	if _, err := c.VectorConfig(); err != nil {
		return err
	}
	if err := c.ExportOptions().Validate(); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "invalid export")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "invalid log level")
	}
	return c.Tracing.Validate()
}

// DataStoreOptions returns the datastore settings.
func (c *Config) DataStoreOptions() datastore.Options {
	comp := c.Compression
	return datastore.Options{
		Shards:      c.Store.Shards,
		Concurrency: c.Store.Concurrency,
		Compression: &comp,
	}
}

// VectorConfig returns the feature vector settings.
func (c *Config) VectorConfig() (*sfvector.Config, error) {
	if c.Vector.Capacity < 0 {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeConfig, "vector capacity must not be negative, got %d", c.Vector.Capacity)
	}
	precision, err := sfvector.ParsePrecision(c.Vector.Precision)
	if err != nil {
		return nil, err
	}
	fids, err := sfvector.ParseFIDEncoding(c.Vector.FIDs)
	if err != nil {
		return nil, err
	}
	out := sfvector.DefaultConfig()
	if c.Vector.Capacity > 0 {
		out.Capacity = c.Vector.Capacity
	}
	out.Encoding = sfvector.Encoding{FIDs: fids, Precision: precision}
	return out, nil
}

// ExportOptions returns the export writer settings.
func (c *Config) ExportOptions() export.Options {
	return export.Options{
		Format:       export.Format(c.Export.Format),
		Compression:  c.Export.Compression,
		RowGroupSize: c.Export.RowGroupSize,
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
