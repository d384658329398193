package main

import (
	"context"
	"errors"
	"slices"

	"github.com/ajitpratap0/geovec/internal/pipeline"
	"github.com/ajitpratap0/geovec/pkg/export"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// errFound stops a read once the first batch has been seen.
var errFound = geoerrors.New(geoerrors.ErrorTypeInternal, "found")

// fileType returns the feature type of the first batch in path.
func fileType(ctx context.Context, path string, cfg *sfvector.Config) (*feature.SimpleFeatureType, error) {
	var sft *feature.SimpleFeatureType
	err := export.ReadPath(ctx, path, cfg, func(sfv *sfvector.SimpleFeatureVector) error {
		sft = sfv.Type()
		return errFound
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, err
	}
	if sft == nil {
		return nil, geoerrors.New(geoerrors.ErrorTypeData, "file holds no record batches").WithDetail("path", path)
	}
	return sft, nil
}

// readVector loads every batch of path into one vector. Dictionaries of all
// batches are merged so no dictionary value is lost.
func readVector(ctx context.Context, path string, cfg *sfvector.Config) (*sfvector.SimpleFeatureVector, error) {
	var (
		sft      *feature.SimpleFeatureType
		dicts    = map[string][]string{}
		features []feature.Feature
	)
	err := export.ReadPath(ctx, path, cfg, func(sfv *sfvector.SimpleFeatureVector) error {
		if sft == nil {
			sft = sfv.Type()
		}
		for name, values := range sfv.Dictionaries() {
			for _, v := range values {
				if !slices.Contains(dicts[name], v) {
					dicts[name] = append(dicts[name], v)
				}
			}
		}
		for i := 0; i < sfv.ValueCount(); i++ {
			f, err := pipeline.Retype(sft, sfv.Get(i))
			if err != nil {
				return err
			}
			features = append(features, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sft == nil {
		return nil, geoerrors.New(geoerrors.ErrorTypeData, "file holds no record batches").WithDetail("path", path)
	}
	return buildVector(sft, dicts, features, cfg)
}

func buildVector(sft *feature.SimpleFeatureType, dicts map[string][]string, features []feature.Feature,
	cfg *sfvector.Config) (*sfvector.SimpleFeatureVector, error) {
	sfv, err := sfvector.Create(sft, dicts, cfg)
	if err != nil {
		return nil, err
	}
	if err := sfv.Load(features); err != nil {
		_ = sfv.Close()
		return nil, err
	}
	return sfv, nil
}
