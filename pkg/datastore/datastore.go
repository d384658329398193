// Package datastore stores features of registered feature types on a store
// platform and answers attribute queries through the version 3 attribute
// index.
//
// Each feature type uses three tables: the shared metadata table holding
// its schema and index version, a records table keyed by feature id, and
// the attribute index table. Index rows carry the same compressed record as
// the records table, so queries never join back to it.
package datastore

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/attrindex"
	"github.com/ajitpratap0/geovec/pkg/compression"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/index"
	"github.com/ajitpratap0/geovec/pkg/logger"
	"github.com/ajitpratap0/geovec/pkg/observability"
	"github.com/ajitpratap0/geovec/pkg/store"
)

// MetadataTable holds one row per feature type.
const MetadataTable = "geovec_metadata"

// DefaultConcurrency bounds the key ranges scanned at once.
const DefaultConcurrency = 8

// Options configures a DataStore.
type Options struct {
	// Shards is the attribute index shard count; 0 uses index.DefaultShards.
	Shards int `yaml:"shards" mapstructure:"shards"`
	// Concurrency bounds concurrent range scans; 0 uses DefaultConcurrency.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// Compression applies to stored records; nil uses compression.DefaultConfig.
	Compression *compression.Config `yaml:"compression" mapstructure:"compression"`
	Logger      *zap.Logger         `yaml:"-" mapstructure:"-"`
}

// DataStore reads and writes features on a platform. It is safe for
// concurrent use.
type DataStore struct {
	platform    store.Platform
	index       *attrindex.AttributeIndex
	pool        *compression.CompressorPool
	concurrency int
	log         *zap.Logger

	mu      sync.RWMutex
	schemas map[string]*feature.SimpleFeatureType
}

// schemaRecord is the metadata row of a feature type.
type schemaRecord struct {
	Spec    string `json:"spec"`
	Index   string `json:"index"`
	Version int    `json:"version"`
	Shards  int    `json:"shards"`
}

// New creates a DataStore over platform. Platform operations are recorded
// in the store metrics.
func New(platform store.Platform, opts Options) (*DataStore, error) {
	pool, err := compression.NewCompressorPool(opts.Compression)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "invalid compression configuration")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("datastore")
	}
	platform = store.Instrument(platform)
	return &DataStore{
		platform:    platform,
		index:       attrindex.NewAttributeIndexV3(platform, opts.Shards),
		pool:        pool,
		concurrency: opts.Concurrency,
		log:         log.With(zap.String("platform", platform.Name())),
		schemas:     map[string]*feature.SimpleFeatureType{},
	}, nil
}

// Index returns the attribute index the store writes through.
func (ds *DataStore) Index() *attrindex.AttributeIndex { return ds.index }

// Close closes the platform.
func (ds *DataStore) Close() error { return ds.platform.Close() }

func recordsTable(sft *feature.SimpleFeatureType) string {
	return attrindex.SanitizeName(sft.Name()) + "_records"
}

func (ds *DataStore) shards() int {
	return ds.index.Keys.(*index.AttributeKeySpace).Shards()
}

// CreateSchema registers sft. Registering an identical schema again is a
// no-op; a different schema under the same name, or a name whose tables
// collide with another type, is a conflict.
func (ds *DataStore) CreateSchema(ctx context.Context, sft *feature.SimpleFeatureType) (err error) {
	ctx, span := observability.StartSpan(ctx, "datastore.CreateSchema",
		attribute.String("geovec.type_name", sft.Name()))
	defer func() { observability.EndSpan(span, err) }()

	if err := ds.index.Keys.Validate(sft); err != nil {
		return err
	}
	names, err := ds.TypeNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == sft.Name() {
			existing, err := ds.GetSchema(ctx, name)
			if err != nil {
				return err
			}
			if existing.Spec() != sft.Spec() {
				return geoerrors.New(geoerrors.ErrorTypeConflict, "feature type already exists with another schema").
					WithDetail("type_name", name)
			}
			return nil
		}
		if attrindex.SanitizeName(name) == attrindex.SanitizeName(sft.Name()) {
			return geoerrors.New(geoerrors.ErrorTypeConflict, "feature type tables collide with an existing type").
				WithDetail("type_name", sft.Name()).
				WithDetail("existing", name)
		}
	}

	meta, err := json.Marshal(schemaRecord{
		Spec:    sft.Spec(),
		Index:   ds.index.Keys.Name(),
		Version: ds.index.Version(),
		Shards:  ds.shards(),
	})
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeInternal, "cannot marshal schema")
	}
	if err := ds.platform.Apply(ctx, MetadataTable, []store.Mutation{store.Put([]byte(sft.Name()), meta)}); err != nil {
		return err
	}

	ds.mu.Lock()
	ds.schemas[sft.Name()] = sft
	ds.mu.Unlock()
	ds.log.Info("created feature type",
		zap.String("type_name", sft.Name()),
		zap.String("spec", sft.Spec()),
		zap.String("index_table", ds.index.TableName(sft.Name())))
	return nil
}

// GetSchema returns the registered feature type typeName. Types written by
// another index version fail with a capability error.
func (ds *DataStore) GetSchema(ctx context.Context, typeName string) (*feature.SimpleFeatureType, error) {
	ds.mu.RLock()
	sft, ok := ds.schemas[typeName]
	ds.mu.RUnlock()
	if ok {
		return sft, nil
	}

	var raw []byte
	key := []byte(typeName)
	err := ds.platform.Scan(ctx, MetadataTable, exactRange(key), func(_, value []byte) error {
		raw = append([]byte(nil), value...)
		return store.ErrStop
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, geoerrors.New(geoerrors.ErrorTypeNotFound, "feature type does not exist").
			WithDetail("type_name", typeName)
	}

	var meta schemaRecord
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot unmarshal schema").
			WithDetail("type_name", typeName)
	}
	if meta.Index != ds.index.Keys.Name() {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeCapability, "unsupported index %q", meta.Index).
			WithDetail("type_name", typeName)
	}
	if err := ds.index.CheckCompatible(meta.Version); err != nil {
		return nil, err
	}
	if meta.Shards != ds.shards() {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeConfig,
			"feature type was indexed with %d shards, the store uses %d", meta.Shards, ds.shards()).
			WithDetail("type_name", typeName)
	}
	sft, err = feature.ParseSpec(typeName, meta.Spec)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	ds.schemas[typeName] = sft
	ds.mu.Unlock()
	return sft, nil
}

// TypeNames lists the registered feature types in name order.
func (ds *DataStore) TypeNames(ctx context.Context) ([]string, error) {
	var names []string
	err := ds.platform.Scan(ctx, MetadataTable, store.Range{}, func(key, _ []byte) error {
		names = append(names, string(key))
		return nil
	})
	return names, err
}

// RemoveSchema deletes typeName with all its features and index rows.
func (ds *DataStore) RemoveSchema(ctx context.Context, typeName string) (err error) {
	ctx, span := observability.StartSpan(ctx, "datastore.RemoveSchema",
		attribute.String("geovec.type_name", typeName))
	defer func() { observability.EndSpan(span, err) }()

	sft, err := ds.GetSchema(ctx, typeName)
	if err != nil {
		return err
	}
	for _, table := range []string{recordsTable(sft), ds.index.TableName(typeName)} {
		if err := ds.truncate(ctx, table); err != nil {
			return err
		}
	}
	if err := ds.platform.Apply(ctx, MetadataTable, []store.Mutation{store.Del([]byte(typeName))}); err != nil {
		return err
	}

	ds.mu.Lock()
	delete(ds.schemas, typeName)
	ds.mu.Unlock()
	ds.log.Info("removed feature type", zap.String("type_name", typeName))
	return nil
}

func (ds *DataStore) truncate(ctx context.Context, table string) error {
	var muts []store.Mutation
	err := ds.platform.Scan(ctx, table, store.Range{}, func(key, _ []byte) error {
		muts = append(muts, store.Del(append([]byte(nil), key...)))
		return nil
	})
	if err != nil || len(muts) == 0 {
		return err
	}
	return ds.platform.Apply(ctx, table, muts)
}

// exactRange covers key alone.
func exactRange(key []byte) store.Range {
	end := make([]byte, len(key)+1)
	copy(end, key)
	return store.Range{Start: key, End: end}
}
