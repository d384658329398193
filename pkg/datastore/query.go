package datastore

import (
	"context"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/index"
	"github.com/ajitpratap0/geovec/pkg/metrics"
	"github.com/ajitpratap0/geovec/pkg/observability"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
	"github.com/ajitpratap0/geovec/pkg/store"
)

// Query selects features. An empty Attribute scans every feature of the
// type; otherwise the attribute index is scanned. BBox, when set, keeps
// features whose default geometry intersects it.
type Query struct {
	index.Query
	// Limit caps the number of features returned; 0 is unlimited.
	Limit int
}

// Query returns the features of typeName matching q. Results are grouped by
// index shard; each feature appears once.
func (ds *DataStore) Query(ctx context.Context, typeName string, q Query) (result []feature.Feature, err error) {
	ctx, span := observability.StartSpan(ctx, "datastore.Query",
		attribute.String("geovec.type_name", typeName),
		attribute.String("geovec.attribute", q.Attribute))
	defer func() { observability.EndSpan(span, err) }()

	sft, err := ds.GetSchema(ctx, typeName)
	if err != nil {
		return nil, err
	}

	table := recordsTable(sft)
	ranges := []store.Range{{}}
	if q.Attribute != "" {
		table = ds.index.TableName(typeName)
		if ranges, err = ds.index.Ranges(sft, q.Query); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("geovec.ranges", len(ranges)))

	perRange := make([][]*feature.SimpleFeature, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ds.concurrency)
	for i, r := range ranges {
		g.Go(func() error {
			local := make(map[string]struct{})
			return ds.platform.Scan(gctx, table, r, func(_, value []byte) error {
				f, err := decodeRecord(sft, value)
				if err != nil {
					return err
				}
				if q.BBox != nil && !intersects(f.DefaultGeometry(), *q.BBox) {
					return nil
				}
				if _, dup := local[f.ID()]; dup {
					return nil
				}
				local[f.ID()] = struct{}{}
				perRange[i] = append(perRange[i], f)
				if q.Limit > 0 && len(perRange[i]) >= q.Limit {
					return store.ErrStop
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, fs := range perRange {
		for _, f := range fs {
			if _, dup := seen[f.ID()]; dup {
				continue
			}
			seen[f.ID()] = struct{}{}
			result = append(result, f)
			if q.Limit > 0 && len(result) == q.Limit {
				break
			}
		}
		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}

	metrics.QueryFeatures.WithLabelValues(typeName).Add(float64(len(result)))
	ds.log.Debug("query finished",
		zap.String("type_name", typeName),
		zap.String("attribute", q.Attribute),
		zap.Int("ranges", len(ranges)),
		zap.Int("features", len(result)))
	return result, nil
}

// QueryVector runs q and loads the results into a new feature vector. The
// caller must close it.
func (ds *DataStore) QueryVector(ctx context.Context, typeName string, q Query, cfg *sfvector.Config) (*sfvector.SimpleFeatureVector, error) {
	features, err := ds.Query(ctx, typeName, q)
	if err != nil {
		return nil, err
	}
	sft, err := ds.GetSchema(ctx, typeName)
	if err != nil {
		return nil, err
	}
	sfv, err := sfvector.Create(sft, nil, cfg)
	if err != nil {
		return nil, err
	}
	if err := sfv.Load(features); err != nil {
		_ = sfv.Close()
		return nil, err
	}
	return sfv, nil
}

func intersects(g orb.Geometry, box orb.Bound) bool {
	if g == nil {
		return false
	}
	return g.Bound().Intersects(box)
}
