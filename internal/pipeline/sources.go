package pipeline

import (
	"context"
	"io"

	"github.com/ajitpratap0/geovec/pkg/export"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// FeatureSource emits the given features.
func FeatureSource(features ...feature.Feature) Source {
	return func(ctx context.Context, emit func(feature.Feature) error) error {
		for _, f := range features {
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	}
}

// FileSource emits the rows of an Arrow or Parquet export file. Rows are
// materialized into features of sft, matching attributes by name; a nil sft
// keeps the file's own type.
func FileSource(path string, sft *feature.SimpleFeatureType, cfg *sfvector.Config) Source {
	return func(ctx context.Context, emit func(feature.Feature) error) error {
		return export.ReadPath(ctx, path, cfg, vectorEmitter(sft, emit))
	}
}

// StreamSource emits the rows of an Arrow IPC stream, such as stdin.
func StreamSource(r io.Reader, sft *feature.SimpleFeatureType, cfg *sfvector.Config) Source {
	return func(ctx context.Context, emit func(feature.Feature) error) error {
		return export.ReadStream(r, cfg, vectorEmitter(sft, emit))
	}
}

// vectorEmitter copies each row out of the vector, which is closed once the
// callback returns.
func vectorEmitter(sft *feature.SimpleFeatureType, emit func(feature.Feature) error) export.VectorFunc {
	return func(sfv *sfvector.SimpleFeatureVector) error {
		target := sft
		if target == nil {
			target = sfv.Type()
		}
		for i := 0; i < sfv.ValueCount(); i++ {
			f, err := Retype(target, sfv.Get(i))
			if err != nil {
				return err
			}
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	}
}

// GeoJSONSource emits the features of a GeoJSON FeatureCollection read from
// r as features of sft.
func GeoJSONSource(r io.Reader, sft *feature.SimpleFeatureType) Source {
	return func(ctx context.Context, emit func(feature.Feature) error) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot read GeoJSON")
		}
		features, err := feature.FeaturesFromGeoJSON(sft, data)
		if err != nil {
			return err
		}
		for _, f := range features {
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	}
}

// Retype materializes f as a feature of sft. Attributes are matched by name
// and converted; attributes missing from f are null.
func Retype(sft *feature.SimpleFeatureType, f feature.Feature) (*feature.SimpleFeature, error) {
	if f.Type() == sft {
		return feature.Copy(sft, f)
	}
	values := make([]any, sft.AttributeCount())
	for i, d := range sft.Attributes() {
		values[i] = f.Attribute(d.Name)
	}
	out, err := feature.NewSimpleFeature(sft, f.ID(), values...)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot convert feature").
			WithDetail("fid", f.ID())
	}
	return out, nil
}
