// Package feature defines the geospatial feature model: attribute types,
// feature types (schemas) and the Feature interface shared by eager
// in-memory features and lazy columnar views.
package feature

import (
	"strings"
)

// AttributeType is the logical type of an attribute.
type AttributeType int

const (
	TypeUnknown AttributeType = iota
	TypeString
	TypeInteger
	TypeLong
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeDate
	TypeUUID
	TypeBytes
	TypeList
	TypePoint
	TypeLineString
	TypePolygon
	TypeMultiPoint
	TypeMultiLineString
	TypeMultiPolygon
	TypeGeometry
)

var typeNames = map[AttributeType]string{
	TypeString:          "String",
	TypeInteger:         "Integer",
	TypeLong:            "Long",
	TypeFloat:           "Float",
	TypeDouble:          "Double",
	TypeBoolean:         "Boolean",
	TypeDate:            "Date",
	TypeUUID:            "UUID",
	TypeBytes:           "Bytes",
	TypeList:            "List",
	TypePoint:           "Point",
	TypeLineString:      "LineString",
	TypePolygon:         "Polygon",
	TypeMultiPoint:      "MultiPoint",
	TypeMultiLineString: "MultiLineString",
	TypeMultiPolygon:    "MultiPolygon",
	TypeGeometry:        "Geometry",
}

// aliases accepted when parsing type names
var typeAliases = map[string]AttributeType{
	"string":          TypeString,
	"int":             TypeInteger,
	"integer":         TypeInteger,
	"long":            TypeLong,
	"float":           TypeFloat,
	"double":          TypeDouble,
	"bool":            TypeBoolean,
	"boolean":         TypeBoolean,
	"date":            TypeDate,
	"timestamp":       TypeDate,
	"uuid":            TypeUUID,
	"bytes":           TypeBytes,
	"list":            TypeList,
	"point":           TypePoint,
	"linestring":      TypeLineString,
	"polygon":         TypePolygon,
	"multipoint":      TypeMultiPoint,
	"multilinestring": TypeMultiLineString,
	"multipolygon":    TypeMultiPolygon,
	"geometry":        TypeGeometry,
}

func (t AttributeType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// ParseAttributeType resolves a type name, case-insensitively.
func ParseAttributeType(name string) (AttributeType, bool) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// IsGeometry reports whether values of t are geometries.
func (t AttributeType) IsGeometry() bool {
	return t >= TypePoint && t <= TypeGeometry
}

// IsPrimitive reports whether t can be used as a list element.
func (t AttributeType) IsPrimitive() bool {
	switch t {
	case TypeString, TypeInteger, TypeLong, TypeFloat, TypeDouble,
		TypeBoolean, TypeDate, TypeUUID:
		return true
	default:
		return false
	}
}
