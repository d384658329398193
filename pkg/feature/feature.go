package feature

import (
	"github.com/paulmach/orb"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// Feature is a typed record conforming to a SimpleFeatureType.
type Feature interface {
	// ID returns the feature identifier.
	ID() string
	// Type returns the schema the feature conforms to.
	Type() *SimpleFeatureType
	// Attribute returns the named attribute value, or nil.
	Attribute(name string) any
	// AttributeAt returns the i-th attribute value.
	AttributeAt(i int) any
	// Attributes returns all attribute values in schema order.
	Attributes() []any
	// DefaultGeometry returns the default geometry value, or nil.
	DefaultGeometry() orb.Geometry
	// UserData returns feature level user data.
	UserData() map[string]string
}

// SimpleFeature is an eager, in-memory Feature.
type SimpleFeature struct {
	sft      *SimpleFeatureType
	id       string
	values   []any
	userData map[string]string
}

// NewSimpleFeature creates a feature. Values are given in schema order and
// converted to the canonical type of each attribute; missing trailing values
// are null.
func NewSimpleFeature(sft *SimpleFeatureType, id string, values ...any) (*SimpleFeature, error) {
	if len(values) > sft.AttributeCount() {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
			"%d values given for %d attributes", len(values), sft.AttributeCount())
	}
	f := &SimpleFeature{
		sft:    sft,
		id:     id,
		values: make([]any, sft.AttributeCount()),
	}
	for i, v := range values {
		if err := f.SetAttributeAt(i, v); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MustNewSimpleFeature is NewSimpleFeature that panics on error.
func MustNewSimpleFeature(sft *SimpleFeatureType, id string, values ...any) *SimpleFeature {
	f, err := NewSimpleFeature(sft, id, values...)
	if err != nil {
		panic(err)
	}
	return f
}

// Copy materializes any Feature into a SimpleFeature bound to sft.
func Copy(sft *SimpleFeatureType, f Feature) (*SimpleFeature, error) {
	out, err := NewSimpleFeature(sft, f.ID(), f.Attributes()...)
	if err != nil {
		return nil, err
	}
	for k, v := range f.UserData() {
		out.SetUserData(k, v)
	}
	return out, nil
}

func (f *SimpleFeature) ID() string                { return f.id }
func (f *SimpleFeature) Type() *SimpleFeatureType { return f.sft }

func (f *SimpleFeature) Attribute(name string) any {
	if i := f.sft.IndexOf(name); i >= 0 {
		return f.values[i]
	}
	return nil
}

func (f *SimpleFeature) AttributeAt(i int) any { return f.values[i] }

func (f *SimpleFeature) Attributes() []any {
	out := make([]any, len(f.values))
	copy(out, f.values)
	return out
}

func (f *SimpleFeature) DefaultGeometry() orb.Geometry {
	if i := f.sft.GeometryIndex(); i >= 0 {
		if g, ok := f.values[i].(orb.Geometry); ok {
			return g
		}
	}
	return nil
}

func (f *SimpleFeature) UserData() map[string]string {
	out := make(map[string]string, len(f.userData))
	for k, v := range f.userData {
		out[k] = v
	}
	return out
}

// SetID replaces the identifier.
func (f *SimpleFeature) SetID(id string) { f.id = id }

// SetAttribute converts and stores a value by name.
func (f *SimpleFeature) SetAttribute(name string, value any) error {
	i := f.sft.IndexOf(name)
	if i < 0 {
		return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "unknown attribute").
			WithDetail("field", name)
	}
	return f.SetAttributeAt(i, value)
}

// SetAttributeAt converts and stores a value by position.
func (f *SimpleFeature) SetAttributeAt(i int, value any) error {
	v, err := ConvertValue(value, f.sft.Attribute(i))
	if err != nil {
		return err
	}
	f.values[i] = v
	return nil
}

// SetUserData stores a feature level user data entry.
func (f *SimpleFeature) SetUserData(key, value string) {
	if f.userData == nil {
		f.userData = make(map[string]string)
	}
	f.userData[key] = value
}
