package sfvector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/vector"
)

// Arrow metadata keys written on created vectors.
const (
	// MetadataDescriptor holds the attribute spec of a child field; a
	// leading '*' marks the default geometry.
	MetadataDescriptor = "geovec:descriptor"
	// MetadataTypeName holds the feature type name on the struct.
	MetadataTypeName = "geovec:type-name"
	// MetadataUserData holds the schema user data as a JSON object.
	MetadataUserData = "geovec:user-data"
)

// Nested field names, following GeoArrow.
const (
	fieldXY          = "xy"
	fieldVertices    = "vertices"
	fieldPoints      = "points"
	fieldRings       = "rings"
	fieldLineStrings = "linestrings"
	fieldPolygons    = "polygons"
	fieldItem        = "item"
)

// newAttributeVector allocates the vector for one attribute.
func newAttributeVector(d feature.AttributeDescriptor, p Precision, dict []string, mem memory.Allocator, capacity int) vector.Vector {
	var v vector.Vector
	switch d.Type {
	case feature.TypeString:
		if dict != nil {
			v = vector.NewDictionary(d.Name, dict, mem, capacity)
		} else {
			v = vector.NewString(d.Name, mem, capacity)
		}
	case feature.TypeList:
		elem := newAttributeVector(feature.AttributeDescriptor{Name: fieldItem, Type: d.ElementType}, p, nil, mem, capacity)
		v = vector.NewList(d.Name, elem, mem, capacity)
	case feature.TypePoint:
		v = newPointVector(d.Name, p, mem, capacity)
	case feature.TypeLineString:
		v = vector.NewList(d.Name, newPointVector(fieldVertices, p, mem, capacity), mem, capacity)
	case feature.TypeMultiPoint:
		v = vector.NewList(d.Name, newPointVector(fieldPoints, p, mem, capacity), mem, capacity)
	case feature.TypePolygon:
		v = vector.NewList(d.Name, newPathVector(fieldRings, p, mem, capacity), mem, capacity)
	case feature.TypeMultiLineString:
		v = vector.NewList(d.Name, newPathVector(fieldLineStrings, p, mem, capacity), mem, capacity)
	case feature.TypeMultiPolygon:
		polygons := vector.NewList(fieldPolygons, newPathVector(fieldRings, p, mem, capacity), mem, capacity)
		v = vector.NewList(d.Name, polygons, mem, capacity)
	default:
		v = newPrimitiveVector(d.Name, d.Type, mem, capacity)
	}
	return v
}

func newPrimitiveVector(name string, t feature.AttributeType, mem memory.Allocator, capacity int) vector.Vector {
	switch t {
	case feature.TypeInteger:
		return vector.NewInt32(name, mem, capacity)
	case feature.TypeLong:
		return vector.NewInt64(name, mem, capacity)
	case feature.TypeFloat:
		return vector.NewFloat32(name, mem, capacity)
	case feature.TypeDouble:
		return vector.NewFloat64(name, mem, capacity)
	case feature.TypeBoolean:
		return vector.NewBool(name, mem, capacity)
	case feature.TypeDate:
		return vector.NewTimestampMillis(name, mem, capacity)
	case feature.TypeUUID:
		return vector.NewFixedSizeBinary(name, 16, mem, capacity)
	case feature.TypeBytes, feature.TypeGeometry:
		return vector.NewBinary(name, mem, capacity)
	}
	return vector.NewString(name, mem, capacity)
}

func newPointVector(name string, p Precision, mem memory.Allocator, capacity int) *vector.FixedSizeList {
	var xy vector.Vector
	if p == Float {
		xy = vector.NewFloat32(fieldXY, mem, 0)
	} else {
		xy = vector.NewFloat64(fieldXY, mem, 0)
	}
	return vector.NewFixedSizeList(name, 2, xy, mem, capacity)
}

// newPathVector is a list of points, used for rings and linestrings.
func newPathVector(name string, p Precision, mem memory.Allocator, capacity int) *vector.List {
	return vector.NewList(name, newPointVector(fieldVertices, p, mem, capacity), mem, capacity)
}

func descriptorMetadata(d feature.AttributeDescriptor, isDefault bool) arrow.Metadata {
	spec := d.Spec()
	if isDefault {
		spec = "*" + spec
	}
	return arrow.NewMetadata([]string{MetadataDescriptor}, []string{spec})
}

func typeMetadata(sft *feature.SimpleFeatureType) (arrow.Metadata, error) {
	keys := []string{MetadataTypeName}
	values := []string{sft.Name()}
	if ud := sft.UserData(); len(ud) > 0 {
		encoded, err := json.Marshal(ud)
		if err != nil {
			return arrow.Metadata{}, geoerrors.Wrap(err, geoerrors.ErrorTypeInternal, "cannot encode user data")
		}
		keys = append(keys, MetadataUserData)
		values = append(values, string(encoded))
	}
	return arrow.NewMetadata(keys, values), nil
}

// deriveType rebuilds the feature type of a struct vector from its child
// fields. Children carrying a descriptor use it; the rest are inferred from
// their Arrow types.
func deriveType(vec *vector.Struct) (*feature.SimpleFeatureType, error) {
	name := vec.Name()
	userData := map[string]string{}
	md := vec.Metadata()
	if v, ok := md.GetValue(MetadataTypeName); ok && v != "" {
		name = v
	}
	if v, ok := md.GetValue(MetadataUserData); ok && v != "" {
		if err := json.Unmarshal([]byte(v), &userData); err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeInvalidArgument, "invalid user data metadata")
		}
	}
	if name == "" {
		name = "features"
	}

	var attrs []feature.AttributeDescriptor
	geomName := ""
	for i := 0; i < vec.NumChildren(); i++ {
		field := vec.ChildAt(i).Field()
		if field.Name == feature.IDField {
			continue
		}
		d, isDefault, err := descriptorFromField(field)
		if err != nil {
			return nil, err
		}
		if isDefault {
			geomName = d.Name
		}
		attrs = append(attrs, d)
	}

	sft, err := feature.NewSimpleFeatureType(name, attrs, geomName, userData)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeInvalidArgument, "cannot derive feature type")
	}
	return sft, nil
}

func descriptorFromField(field arrow.Field) (feature.AttributeDescriptor, bool, error) {
	if spec, ok := field.Metadata.GetValue(MetadataDescriptor); ok {
		d, isDefault, err := feature.ParseAttributeSpec(spec)
		if err != nil {
			return d, false, geoerrors.Wrap(err, geoerrors.ErrorTypeInvalidArgument, "invalid descriptor metadata").
				WithDetail("field", field.Name)
		}
		if d.Name != field.Name {
			return d, false, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
				"descriptor names %q", d.Name).WithDetail("field", field.Name)
		}
		return d, isDefault, nil
	}

	d := feature.AttributeDescriptor{Name: field.Name, Options: map[string]string{}}
	if t, ok := primitiveType(field.Type); ok {
		d.Type = t
		return d, false, nil
	}
	if t, ok := geometryType(field.Type); ok {
		d.Type = t
		return d, false, nil
	}
	if lt, ok := field.Type.(*arrow.ListType); ok {
		if elem, ok := primitiveType(lt.Elem()); ok {
			d.Type = feature.TypeList
			d.ElementType = elem
			return d, false, nil
		}
	}
	return d, false, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
		"no attribute type for arrow type %s", field.Type).WithDetail("field", field.Name)
}

func primitiveType(dt arrow.DataType) (feature.AttributeType, bool) {
	switch t := dt.(type) {
	case *arrow.StringType:
		return feature.TypeString, true
	case *arrow.DictionaryType:
		if t.ValueType.ID() == arrow.STRING {
			return feature.TypeString, true
		}
	case *arrow.Int32Type:
		return feature.TypeInteger, true
	case *arrow.Int64Type:
		return feature.TypeLong, true
	case *arrow.Float32Type:
		return feature.TypeFloat, true
	case *arrow.Float64Type:
		return feature.TypeDouble, true
	case *arrow.BooleanType:
		return feature.TypeBoolean, true
	case *arrow.TimestampType:
		if t.Unit == arrow.Millisecond {
			return feature.TypeDate, true
		}
	case *arrow.FixedSizeBinaryType:
		if t.ByteWidth == 16 {
			return feature.TypeUUID, true
		}
	case *arrow.BinaryType:
		return feature.TypeBytes, true
	}
	return feature.TypeUnknown, false
}

// geometryType recognizes the nested point list layouts.
func geometryType(dt arrow.DataType) (feature.AttributeType, bool) {
	if isPointType(dt) {
		return feature.TypePoint, true
	}
	outer, ok := dt.(*arrow.ListType)
	if !ok {
		return feature.TypeUnknown, false
	}
	elem := outer.ElemField()
	if isPointType(elem.Type) {
		if elem.Name == fieldPoints {
			return feature.TypeMultiPoint, true
		}
		return feature.TypeLineString, true
	}
	inner, ok := elem.Type.(*arrow.ListType)
	if !ok {
		return feature.TypeUnknown, false
	}
	if isPointType(inner.Elem()) {
		if elem.Name == fieldLineStrings {
			return feature.TypeMultiLineString, true
		}
		return feature.TypePolygon, true
	}
	if rings, ok := inner.Elem().(*arrow.ListType); ok && isPointType(rings.Elem()) {
		return feature.TypeMultiPolygon, true
	}
	return feature.TypeUnknown, false
}

func isPointType(dt arrow.DataType) bool {
	fsl, ok := dt.(*arrow.FixedSizeListType)
	if !ok || fsl.Len() != 2 {
		return false
	}
	switch fsl.Elem().ID() {
	case arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}
