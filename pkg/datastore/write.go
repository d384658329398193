package datastore

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/geovec/pkg/attrindex"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/metrics"
	"github.com/ajitpratap0/geovec/pkg/observability"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
	"github.com/ajitpratap0/geovec/pkg/store"
)

// Write stores features of typeName, replacing features with the same id.
// Within one call the last feature for an id wins.
func (ds *DataStore) Write(ctx context.Context, typeName string, features []feature.Feature) (err error) {
	ctx, span := observability.StartSpan(ctx, "datastore.Write",
		attribute.String("geovec.type_name", typeName),
		attribute.Int("geovec.features", len(features)))
	defer func() { observability.EndSpan(span, err) }()

	sft, err := ds.GetSchema(ctx, typeName)
	if err != nil {
		return err
	}
	tracker := metrics.NewThroughputTracker(typeName)

	latest := make(map[string]*feature.SimpleFeature, len(features))
	ids := make([]string, 0, len(features))
	for _, f := range features {
		if f.ID() == "" {
			return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "feature id is empty").
				WithDetail("type_name", typeName)
		}
		sf, err := feature.Copy(sft, f)
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeData, "feature does not match its type").
				WithDetail("id", f.ID())
		}
		if _, seen := latest[sf.ID()]; !seen {
			ids = append(ids, sf.ID())
		}
		latest[sf.ID()] = sf
	}
	if len(ids) == 0 {
		return nil
	}

	existing, err := ds.lookup(ctx, sft, ids)
	if err != nil {
		return err
	}
	stale := make([]feature.Feature, 0, len(existing))
	for _, id := range ids {
		if old, ok := existing[id]; ok {
			stale = append(stale, old)
		}
	}

	entries := make([]attrindex.Entry, 0, len(ids))
	records := make([]store.Mutation, 0, len(ids))
	for _, id := range ids {
		f := latest[id]
		value, err := encodeRecord(ds.pool, sft, f)
		if err != nil {
			return err
		}
		entries = append(entries, attrindex.Entry{Feature: f, Value: value})
		records = append(records, store.Put([]byte(id), value))
	}

	if len(stale) > 0 {
		if err := ds.index.Delete(ctx, sft, stale); err != nil {
			return err
		}
	}
	if err := ds.index.Write(ctx, sft, entries); err != nil {
		return err
	}
	if err := ds.platform.Apply(ctx, recordsTable(sft), records); err != nil {
		return err
	}

	tracker.Increment(int64(len(ids)))
	ds.log.Debug("wrote features",
		zap.String("type_name", typeName),
		zap.Int("features", len(ids)),
		zap.Int("replaced", len(stale)),
		zap.Float64("features_per_second", tracker.GetAndReset()))
	return nil
}

// WriteVector stores the rows of sfv under typeName.
func (ds *DataStore) WriteVector(ctx context.Context, typeName string, sfv *sfvector.SimpleFeatureVector) error {
	features := make([]feature.Feature, sfv.ValueCount())
	for i := range features {
		features[i] = sfv.Get(i)
	}
	return ds.Write(ctx, typeName, features)
}

// Delete removes the features with the given ids and returns how many
// existed.
func (ds *DataStore) Delete(ctx context.Context, typeName string, ids []string) (n int, err error) {
	ctx, span := observability.StartSpan(ctx, "datastore.Delete",
		attribute.String("geovec.type_name", typeName),
		attribute.Int("geovec.ids", len(ids)))
	defer func() { observability.EndSpan(span, err) }()

	sft, err := ds.GetSchema(ctx, typeName)
	if err != nil {
		return 0, err
	}
	existing, err := ds.lookup(ctx, sft, ids)
	if err != nil || len(existing) == 0 {
		return 0, err
	}

	stale := make([]feature.Feature, 0, len(existing))
	records := make([]store.Mutation, 0, len(existing))
	for id, f := range existing {
		stale = append(stale, f)
		records = append(records, store.Del([]byte(id)))
	}
	if err := ds.index.Delete(ctx, sft, stale); err != nil {
		return 0, err
	}
	if err := ds.platform.Apply(ctx, recordsTable(sft), records); err != nil {
		return 0, err
	}
	ds.log.Debug("deleted features", zap.String("type_name", typeName), zap.Int("features", len(existing)))
	return len(existing), nil
}

// Get returns the feature id of typeName.
func (ds *DataStore) Get(ctx context.Context, typeName, id string) (feature.Feature, error) {
	sft, err := ds.GetSchema(ctx, typeName)
	if err != nil {
		return nil, err
	}
	found, err := ds.lookup(ctx, sft, []string{id})
	if err != nil {
		return nil, err
	}
	f, ok := found[id]
	if !ok {
		return nil, geoerrors.New(geoerrors.ErrorTypeNotFound, "feature does not exist").
			WithDetail("type_name", typeName).
			WithDetail("id", id)
	}
	return f, nil
}

// lookup reads the stored features with the given ids, concurrently.
func (ds *DataStore) lookup(ctx context.Context, sft *feature.SimpleFeatureType, ids []string) (map[string]*feature.SimpleFeature, error) {
	var mu sync.Mutex
	found := make(map[string]*feature.SimpleFeature)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ds.concurrency)
	table := recordsTable(sft)
	for _, id := range ids {
		g.Go(func() error {
			return ds.platform.Scan(gctx, table, exactRange([]byte(id)), func(_, value []byte) error {
				f, err := decodeRecord(sft, value)
				if err != nil {
					return err
				}
				mu.Lock()
				found[id] = f
				mu.Unlock()
				return store.ErrStop
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}
