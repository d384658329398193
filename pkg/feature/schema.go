package feature

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// IDField is the reserved name of the feature identifier column.
const IDField = "id"

// Option keys understood by the attribute index.
const (
	OptionIndex = "index"
	OptionSRID  = "srid"
	// UserDataDtgKey names the date attribute used for secondary index tiers.
	UserDataDtgKey = "geovec.index.dtg"
)

// AttributeDescriptor describes a single named attribute.
type AttributeDescriptor struct {
	Name string
	Type AttributeType
	// ElementType is the element type of List attributes.
	ElementType AttributeType
	Options     map[string]string
}

// Indexed reports whether the attribute has index=true (or full/join).
func (d AttributeDescriptor) Indexed() bool {
	switch strings.ToLower(d.Options[OptionIndex]) {
	case "true", "full", "join":
		return true
	}
	return false
}

// Spec renders the descriptor as a spec fragment, e.g. "name:String:index=true".
func (d AttributeDescriptor) Spec() string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	sb.WriteByte(':')
	sb.WriteString(d.Type.String())
	if d.Type == TypeList {
		sb.WriteByte('[')
		sb.WriteString(d.ElementType.String())
		sb.WriteByte(']')
	}
	keys := make([]string, 0, len(d.Options))
	for k := range d.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte(':')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(d.Options[k])
	}
	return sb.String()
}

// SimpleFeatureType is an immutable, ordered set of attribute descriptors
// with at most one default geometry.
type SimpleFeatureType struct {
	name     string
	attrs    []AttributeDescriptor
	index    map[string]int
	geom     int
	userData map[string]string
}

// NewSimpleFeatureType validates attrs and builds a feature type. geomName
// designates the default geometry; when empty the first geometry attribute
// is used.
func NewSimpleFeatureType(name string, attrs []AttributeDescriptor, geomName string, userData map[string]string) (*SimpleFeatureType, error) {
	if name == "" {
		return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "feature type name is required")
	}

	sft := &SimpleFeatureType{
		name:     name,
		attrs:    make([]AttributeDescriptor, len(attrs)),
		index:    make(map[string]int, len(attrs)),
		geom:     -1,
		userData: make(map[string]string, len(userData)),
	}

	for i, a := range attrs {
		if a.Name == "" {
			return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "attribute name is required").
				WithDetail("position", i)
		}
		if a.Name == IDField {
			return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "attribute name is reserved").
				WithDetail("field", a.Name)
		}
		if _, dup := sft.index[a.Name]; dup {
			return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "duplicate attribute").
				WithDetail("field", a.Name)
		}
		if a.Type == TypeUnknown {
			return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "unknown attribute type").
				WithDetail("field", a.Name)
		}
		if a.Type == TypeList && !a.ElementType.IsPrimitive() {
			return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidSchema, "unsupported list element type %s", a.ElementType).
				WithDetail("field", a.Name)
		}
		opts := make(map[string]string, len(a.Options))
		for k, v := range a.Options {
			opts[k] = v
		}
		a.Options = opts
		sft.attrs[i] = a
		sft.index[a.Name] = i
	}

	if geomName != "" {
		i, ok := sft.index[geomName]
		if !ok {
			return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "default geometry is not an attribute").
				WithDetail("field", geomName)
		}
		if !sft.attrs[i].Type.IsGeometry() {
			return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "default geometry is not a geometry type").
				WithDetail("field", geomName)
		}
		sft.geom = i
	} else {
		for i, a := range sft.attrs {
			if a.Type.IsGeometry() {
				sft.geom = i
				break
			}
		}
	}

	for k, v := range userData {
		sft.userData[k] = v
	}

	return sft, nil
}

// Name returns the type name.
func (s *SimpleFeatureType) Name() string { return s.name }

// AttributeCount returns the number of attributes.
func (s *SimpleFeatureType) AttributeCount() int { return len(s.attrs) }

// Attribute returns the i-th descriptor.
func (s *SimpleFeatureType) Attribute(i int) AttributeDescriptor { return s.attrs[i] }

// Attributes returns a copy of the descriptors in order.
func (s *SimpleFeatureType) Attributes() []AttributeDescriptor {
	out := make([]AttributeDescriptor, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// IndexOf returns the position of the named attribute or -1.
func (s *SimpleFeatureType) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// GeometryIndex returns the position of the default geometry or -1.
func (s *SimpleFeatureType) GeometryIndex() int { return s.geom }

// GeometryDescriptor returns the default geometry descriptor, if any.
func (s *SimpleFeatureType) GeometryDescriptor() (AttributeDescriptor, bool) {
	if s.geom < 0 {
		return AttributeDescriptor{}, false
	}
	return s.attrs[s.geom], true
}

// DtgIndex returns the date attribute used for time tiers: the one named by
// the geovec.index.dtg user data, else the first Date attribute, else -1.
func (s *SimpleFeatureType) DtgIndex() int {
	if name, ok := s.userData[UserDataDtgKey]; ok {
		if i := s.IndexOf(name); i >= 0 && s.attrs[i].Type == TypeDate {
			return i
		}
	}
	for i, a := range s.attrs {
		if a.Type == TypeDate {
			return i
		}
	}
	return -1
}

// UserData returns a copy of the schema level user data.
func (s *SimpleFeatureType) UserData() map[string]string {
	out := make(map[string]string, len(s.userData))
	for k, v := range s.userData {
		out[k] = v
	}
	return out
}

// Spec encodes the type as a spec string accepted by ParseSpec.
func (s *SimpleFeatureType) Spec() string {
	parts := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		if i == s.geom {
			parts[i] = "*" + a.Spec()
		} else {
			parts[i] = a.Spec()
		}
	}
	spec := strings.Join(parts, ",")
	if len(s.userData) > 0 {
		keys := make([]string, 0, len(s.userData))
		for k := range s.userData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ud := make([]string, len(keys))
		for i, k := range keys {
			ud[i] = k + "=" + s.userData[k]
		}
		spec += ";" + strings.Join(ud, ",")
	}
	return spec
}

// ParseSpec parses a spec string such as
//
//	name:String:index=true,tags:List[String],dtg:Date,*geom:Point:srid=4326;geovec.index.dtg=dtg
func ParseSpec(name, spec string) (*SimpleFeatureType, error) {
	attrPart, udPart, _ := strings.Cut(spec, ";")

	var attrs []AttributeDescriptor
	geomName := ""
	if strings.TrimSpace(attrPart) != "" {
		for _, raw := range strings.Split(attrPart, ",") {
			d, isDefault, err := ParseAttributeSpec(raw)
			if err != nil {
				return nil, err
			}
			if isDefault {
				geomName = d.Name
			}
			attrs = append(attrs, d)
		}
	}

	userData := make(map[string]string)
	if strings.TrimSpace(udPart) != "" {
		for _, kv := range strings.Split(udPart, ",") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "malformed user data entry").
					WithDetail("entry", kv)
			}
			userData[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	return NewSimpleFeatureType(name, attrs, geomName, userData)
}

// ParseAttributeSpec parses one attribute fragment. The returned flag
// reports a leading '*' default geometry marker.
func ParseAttributeSpec(raw string) (AttributeDescriptor, bool, error) {
	raw = strings.TrimSpace(raw)
	isDefault := strings.HasPrefix(raw, "*")
	raw = strings.TrimPrefix(raw, "*")

	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return AttributeDescriptor{}, false, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "attribute spec needs a name and a type").
			WithDetail("spec", raw)
	}

	d := AttributeDescriptor{Name: strings.TrimSpace(parts[0]), Options: map[string]string{}}
	typeName := strings.TrimSpace(parts[1])
	if open := strings.Index(typeName, "["); open >= 0 && strings.HasSuffix(typeName, "]") {
		elem, ok := ParseAttributeType(typeName[open+1 : len(typeName)-1])
		if !ok {
			return AttributeDescriptor{}, false, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "unknown list element type").
				WithDetail("field", d.Name)
		}
		d.ElementType = elem
		typeName = typeName[:open]
	}
	t, ok := ParseAttributeType(typeName)
	if !ok {
		return AttributeDescriptor{}, false, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "unknown attribute type").
			WithDetail("field", d.Name).
			WithDetail("type", typeName)
	}
	d.Type = t
	if t == TypeList && d.ElementType == TypeUnknown {
		d.ElementType = TypeString
	}

	for _, opt := range parts[2:] {
		k, v, ok := strings.Cut(opt, "=")
		if !ok {
			return AttributeDescriptor{}, false, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "malformed attribute option").
				WithDetail("field", d.Name).
				WithDetail("option", opt)
		}
		d.Options[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if isDefault && !t.IsGeometry() {
		return AttributeDescriptor{}, false, geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "default geometry is not a geometry type").
			WithDetail("field", d.Name)
	}

	return d, isDefault, nil
}
