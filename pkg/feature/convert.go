package feature

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// ConvertValue coerces value into the canonical Go type of the attribute:
//
//	String          string
//	Integer, Long   int32, int64
//	Float, Double   float32, float64
//	Boolean         bool
//	Date            time.Time (UTC, millisecond precision)
//	UUID            uuid.UUID
//	Bytes           []byte
//	List[T]         []string, []int32, []int64, []float32, []float64, []bool, []time.Time, []uuid.UUID
//	geometries      the matching orb type (orb.Geometry for Geometry)
//
// nil converts to nil.
func ConvertValue(value any, d AttributeDescriptor) (any, error) {
	if value == nil {
		return nil, nil
	}
	var (
		out any
		err error
	)
	if d.Type == TypeList {
		out, err = convertList(value, d.ElementType)
	} else {
		out, err = convertScalar(value, d.Type)
	}
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot convert attribute value").
			WithDetail("field", d.Name).
			WithDetail("type", d.Type.String())
	}
	return out, nil
}

func convertScalar(value any, t AttributeType) (any, error) {
	switch t {
	case TypeString:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case TypeInteger:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows int32", n)
		}
		return int32(n), nil
	case TypeLong:
		return toInt64(value)
	case TypeFloat:
		f, err := toFloat64(value)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case TypeDouble:
		return toFloat64(value)
	case TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
	case TypeDate:
		return toTime(value)
	case TypeUUID:
		switch v := value.(type) {
		case uuid.UUID:
			return v, nil
		case [16]byte:
			return uuid.UUID(v), nil
		case []byte:
			return uuid.FromBytes(v)
		case string:
			return uuid.Parse(v)
		}
	case TypeBytes:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	default:
		if t.IsGeometry() {
			return toGeometry(value, t)
		}
	}
	return nil, fmt.Errorf("unsupported value %T", value)
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		if float32(int64(v)) != v {
			return 0, fmt.Errorf("%v is not integral", v)
		}
		return int64(v), nil
	case float64:
		if float64(int64(v)) != v {
			return 0, fmt.Errorf("%v is not integral", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", value)
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("unsupported value %T", value)
}

func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return time.UnixMilli(v.UnixMilli()).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(t.UnixMilli()).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported value %T", value)
}

func toGeometry(value any, t AttributeType) (any, error) {
	var g orb.Geometry
	switch v := value.(type) {
	case orb.Geometry:
		g = v
	case []byte:
		decoded, err := wkb.Unmarshal(v)
		if err != nil {
			return nil, err
		}
		g = decoded
	case string:
		decoded, err := wkt.Unmarshal(v)
		if err != nil {
			return nil, err
		}
		g = decoded
	default:
		return nil, fmt.Errorf("unsupported geometry value %T", value)
	}

	ok := false
	switch t {
	case TypePoint:
		_, ok = g.(orb.Point)
	case TypeLineString:
		_, ok = g.(orb.LineString)
	case TypePolygon:
		if r, isRing := g.(orb.Ring); isRing {
			g, ok = orb.Polygon{r}, true
		} else {
			_, ok = g.(orb.Polygon)
		}
	case TypeMultiPoint:
		_, ok = g.(orb.MultiPoint)
	case TypeMultiLineString:
		_, ok = g.(orb.MultiLineString)
	case TypeMultiPolygon:
		_, ok = g.(orb.MultiPolygon)
	case TypeGeometry:
		ok = true
	}
	if !ok {
		return nil, fmt.Errorf("%s is not a %s", g.GeoJSONType(), t)
	}
	return g, nil
}

func convertList(value any, elem AttributeType) (any, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string, []int32, []int64, []float32, []float64, []bool, []time.Time, []uuid.UUID:
		items = ListItems(v)
	default:
		return nil, fmt.Errorf("unsupported list value %T", value)
	}

	converted := make([]any, len(items))
	for i, item := range items {
		c, err := convertScalar(item, elem)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		converted[i] = c
	}
	return TypedList(converted, elem), nil
}

// ListItems flattens a canonical list value into []any.
func ListItems(list any) []any {
	switch v := list.(type) {
	case []any:
		return v
	case []string:
		return toAny(v)
	case []int32:
		return toAny(v)
	case []int64:
		return toAny(v)
	case []float32:
		return toAny(v)
	case []float64:
		return toAny(v)
	case []bool:
		return toAny(v)
	case []time.Time:
		return toAny(v)
	case []uuid.UUID:
		return toAny(v)
	}
	return nil
}

// TypedList builds the canonical slice type for elem from converted items.
func TypedList(items []any, elem AttributeType) any {
	switch elem {
	case TypeString:
		return fromAny[string](items)
	case TypeInteger:
		return fromAny[int32](items)
	case TypeLong:
		return fromAny[int64](items)
	case TypeFloat:
		return fromAny[float32](items)
	case TypeDouble:
		return fromAny[float64](items)
	case TypeBoolean:
		return fromAny[bool](items)
	case TypeDate:
		return fromAny[time.Time](items)
	case TypeUUID:
		return fromAny[uuid.UUID](items)
	}
	return items
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func fromAny[T any](in []any) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i], _ = v.(T)
	}
	return out
}
