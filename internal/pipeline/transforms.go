package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/ajitpratap0/geovec/pkg/feature"
)

// FilterTransform keeps the features for which keep returns true.
func FilterTransform(keep func(feature.Feature) bool) Transform {
	return func(_ context.Context, f feature.Feature) (feature.Feature, error) {
		if keep(f) {
			return f, nil
		}
		return nil, nil
	}
}

// BBoxTransform keeps features whose default geometry bound intersects box.
// Features without a geometry are dropped.
func BBoxTransform(box orb.Bound) Transform {
	return FilterTransform(func(f feature.Feature) bool {
		g := f.DefaultGeometry()
		return g != nil && g.Bound().Intersects(box)
	})
}

// AssignIDs gives features with an empty id a random UUID.
func AssignIDs() Transform {
	return func(_ context.Context, f feature.Feature) (feature.Feature, error) {
		if f.ID() != "" {
			return f, nil
		}
		out, err := feature.Copy(f.Type(), f)
		if err != nil {
			return nil, err
		}
		out.SetID(uuid.NewString())
		return out, nil
	}
}

// RetypeTransform converts features to sft by attribute name.
func RetypeTransform(sft *feature.SimpleFeatureType) Transform {
	return func(_ context.Context, f feature.Feature) (feature.Feature, error) {
		return Retype(sft, f)
	}
}
