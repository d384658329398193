package feature

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// FeaturesFromGeoJSON decodes a GeoJSON FeatureCollection into features of
// sft. The GeoJSON geometry populates the default geometry; properties are
// matched to attributes by name and unknown properties are ignored. Features
// without an id get a random UUID.
func FeaturesFromGeoJSON(sft *SimpleFeatureType, data []byte) ([]*SimpleFeature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "invalid GeoJSON feature collection")
	}

	out := make([]*SimpleFeature, 0, len(fc.Features))
	for n, gf := range fc.Features {
		id := uuid.NewString()
		if gf.ID != nil {
			id = fmt.Sprint(gf.ID)
		}
		f, err := NewSimpleFeature(sft, id)
		if err != nil {
			return nil, err
		}
		for i := 0; i < sft.AttributeCount(); i++ {
			d := sft.Attribute(i)
			var value any
			if i == sft.GeometryIndex() {
				if gf.Geometry != nil {
					value = gf.Geometry
				}
			} else if v, ok := gf.Properties[d.Name]; ok {
				value = v
			}
			if err := f.SetAttributeAt(i, value); err != nil {
				return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot convert GeoJSON feature").
					WithDetail("feature", n)
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// ToGeoJSON encodes features as a GeoJSON FeatureCollection. Non-default
// geometry attributes are rendered as WKT properties.
func ToGeoJSON(features []Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		geom := f.DefaultGeometry()
		if geom == nil {
			geom = orb.Collection{}
		}
		gf := geojson.NewFeature(geom)
		gf.ID = f.ID()
		sft := f.Type()
		for i := 0; i < sft.AttributeCount(); i++ {
			if i == sft.GeometryIndex() {
				continue
			}
			v := f.AttributeAt(i)
			if g, ok := v.(orb.Geometry); ok {
				v = wkt.MarshalString(g)
			}
			gf.Properties[sft.Attribute(i).Name] = v
		}
		fc.Append(gf)
	}
	return fc.MarshalJSON()
}
