package datastore

import (
	"bytes"
	"encoding/base64"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/ajitpratap0/geovec/pkg/compression"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// record is the stored form of a feature. Values follow the attribute order
// of the feature type; Long values are strings, dates are epoch
// milliseconds, geometries are WKB, and bytes and WKB are base64.
type record struct {
	ID     string `json:"id"`
	Values []any  `json:"values"`
}

// encodeRecord serializes f and frames it with the compressor pool.
func encodeRecord(pool *compression.CompressorPool, sft *feature.SimpleFeatureType, f feature.Feature) ([]byte, error) {
	rec := record{ID: f.ID(), Values: make([]any, sft.AttributeCount())}
	for i, d := range sft.Attributes() {
		v, err := encodeValue(d.Type, d.ElementType, f.AttributeAt(i))
		if err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot encode attribute").
				WithDetail("field", d.Name).
				WithDetail("id", f.ID())
		}
		rec.Values[i] = v
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot marshal feature").WithDetail("id", f.ID())
	}
	framed, err := pool.Frame(data)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeInternal, "cannot compress feature")
	}
	return framed, nil
}

// decodeRecord reverses encodeRecord. Values written under any supported
// compression algorithm are accepted.
func decodeRecord(sft *feature.SimpleFeatureType, framed []byte) (*feature.SimpleFeature, error) {
	data, err := compression.Unframe(framed)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot decompress feature")
	}
	var rec record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot unmarshal feature")
	}
	if len(rec.Values) != sft.AttributeCount() {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeData, "feature has %d values for %d attributes",
			len(rec.Values), sft.AttributeCount()).WithDetail("id", rec.ID)
	}
	values := make([]any, len(rec.Values))
	for i, d := range sft.Attributes() {
		v, err := decodeValue(d.Type, d.ElementType, rec.Values[i])
		if err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot decode attribute").
				WithDetail("field", d.Name).
				WithDetail("id", rec.ID)
		}
		values[i] = v
	}
	return feature.NewSimpleFeature(sft, rec.ID, values...)
}

func encodeValue(t, elem feature.AttributeType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case feature.TypeLong:
		n, ok := v.(int64)
		if !ok {
			return nil, typeError(v, t)
		}
		return strconv.FormatInt(n, 10), nil
	case feature.TypeFloat:
		f, ok := v.(float32)
		if !ok {
			return nil, typeError(v, t)
		}
		return encodeFloat(float64(f), 32), nil
	case feature.TypeDouble:
		f, ok := v.(float64)
		if !ok {
			return nil, typeError(v, t)
		}
		return encodeFloat(f, 64), nil
	case feature.TypeDate:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, typeError(v, t)
		}
		return ts.UnixMilli(), nil
	case feature.TypeUUID:
		id, ok := v.(uuid.UUID)
		if !ok {
			return nil, typeError(v, t)
		}
		return id.String(), nil
	case feature.TypeList:
		items := feature.ListItems(v)
		if items == nil {
			return nil, typeError(v, t)
		}
		out := make([]any, len(items))
		for i, item := range items {
			enc, err := encodeValue(elem, feature.TypeString, item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	}
	if t.IsGeometry() {
		g, ok := v.(orb.Geometry)
		if !ok {
			return nil, typeError(v, t)
		}
		return wkb.Marshal(g)
	}
	return v, nil
}

// encodeFloat keeps finite values numeric and writes NaN and infinities as
// strings, which JSON numbers cannot carry.
func encodeFloat(f float64, bits int) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	if bits == 32 {
		return float32(f)
	}
	return f
}

func decodeValue(t, elem feature.AttributeType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case feature.TypeString:
		return asString(raw, t)
	case feature.TypeInteger:
		n, err := asInt(raw, t)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, geoerrors.Newf(geoerrors.ErrorTypeData, "integer %d out of range", n)
		}
		return int32(n), nil
	case feature.TypeLong:
		s, err := asString(raw, t)
		if err != nil {
			return nil, err
		}
		return strconv.ParseInt(s, 10, 64)
	case feature.TypeFloat:
		f, err := asFloat(raw, 32, t)
		return float32(f), err
	case feature.TypeDouble:
		return asFloat(raw, 64, t)
	case feature.TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, typeError(raw, t)
		}
		return b, nil
	case feature.TypeDate:
		ms, err := asInt(raw, t)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case feature.TypeUUID:
		s, err := asString(raw, t)
		if err != nil {
			return nil, err
		}
		return uuid.Parse(s)
	case feature.TypeBytes:
		s, err := asString(raw, t)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(s)
	case feature.TypeList:
		items, ok := raw.([]any)
		if !ok {
			return nil, typeError(raw, t)
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := decodeValue(elem, feature.TypeString, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return feature.TypedList(out, elem), nil
	}
	if t.IsGeometry() {
		s, err := asString(raw, t)
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return wkb.Unmarshal(b)
	}
	return nil, geoerrors.Newf(geoerrors.ErrorTypeData, "unsupported attribute type %s", t)
}

func asString(raw any, t feature.AttributeType) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", typeError(raw, t)
	}
	return s, nil
}

func asInt(raw any, t feature.AttributeType) (int64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, typeError(raw, t)
	}
	return n.Int64()
}

func asFloat(raw any, bits int, t feature.AttributeType) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		return strconv.ParseFloat(v.String(), bits)
	case string:
		return strconv.ParseFloat(v, bits)
	}
	return 0, typeError(raw, t)
}

func typeError(v any, t feature.AttributeType) error {
	return geoerrors.Newf(geoerrors.ErrorTypeData, "unexpected %T for a %s value", v, t)
}
