package sfvector

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/vector"
)

// coords is the flat x/y child of a point vector at either precision.
type coords interface {
	setCoord(i int, v float64)
	coord(i int) float64
}

type float32Coords struct{ v *vector.FixedWidth[float32] }

func (c float32Coords) setCoord(i int, v float64) { c.v.Set(i, float32(v)) }
func (c float32Coords) coord(i int) float64       { return float64(c.v.Get(i)) }

type float64Coords struct{ v *vector.FixedWidth[float64] }

func (c float64Coords) setCoord(i int, v float64) { c.v.Set(i, v) }
func (c float64Coords) coord(i int) float64       { return c.v.Get(i) }

type pointCodec struct {
	v  *vector.FixedSizeList
	xy coords
}

func bindPoints(v vector.Vector) (pointCodec, error) {
	fsl, ok := v.(*vector.FixedSizeList)
	if !ok || fsl.Size() != 2 {
		return pointCodec{}, fmt.Errorf("%s is not a point layout", v.DataType())
	}
	switch xy := fsl.Child().(type) {
	case *vector.FixedWidth[float32]:
		return pointCodec{v: fsl, xy: float32Coords{xy}}, nil
	case *vector.FixedWidth[float64]:
		return pointCodec{v: fsl, xy: float64Coords{xy}}, nil
	}
	return pointCodec{}, fmt.Errorf("%s is not a point layout", v.DataType())
}

func (c pointCodec) write(i int, p orb.Point) {
	pos := c.v.StartRow(i)
	c.xy.setCoord(pos, p[0])
	c.xy.setCoord(pos+1, p[1])
}

func (c pointCodec) read(i int) orb.Point {
	pos := i * 2
	return orb.Point{c.xy.coord(pos), c.xy.coord(pos + 1)}
}

// pathCodec is a list of points: linestrings, rings and multipoints.
type pathCodec struct {
	v      *vector.List
	points pointCodec
}

func bindPaths(v vector.Vector) (pathCodec, error) {
	list, ok := v.(*vector.List)
	if !ok {
		return pathCodec{}, fmt.Errorf("%s is not a point list layout", v.DataType())
	}
	points, err := bindPoints(list.Child())
	if err != nil {
		return pathCodec{}, err
	}
	return pathCodec{v: list, points: points}, nil
}

func (c pathCodec) write(i int, pts []orb.Point) error {
	start, err := c.v.StartRow(i, len(pts))
	if err != nil {
		return err
	}
	for k, p := range pts {
		c.points.write(start+k, p)
	}
	return nil
}

func (c pathCodec) read(i int) []orb.Point {
	start, end := c.v.Range(i)
	out := make([]orb.Point, end-start)
	for k := range out {
		out[k] = c.points.read(start + k)
	}
	return out
}

// partsCodec is a list of paths: polygons and multilinestrings.
type partsCodec struct {
	v     *vector.List
	paths pathCodec
}

func bindParts(v vector.Vector) (partsCodec, error) {
	list, ok := v.(*vector.List)
	if !ok {
		return partsCodec{}, fmt.Errorf("%s is not a nested point list layout", v.DataType())
	}
	paths, err := bindPaths(list.Child())
	if err != nil {
		return partsCodec{}, err
	}
	return partsCodec{v: list, paths: paths}, nil
}

func (c partsCodec) write(i int, parts [][]orb.Point) error {
	start, err := c.v.StartRow(i, len(parts))
	if err != nil {
		return err
	}
	for k, part := range parts {
		if err := c.paths.write(start+k, part); err != nil {
			return err
		}
	}
	return nil
}

func (c partsCodec) read(i int) [][]orb.Point {
	start, end := c.v.Range(i)
	out := make([][]orb.Point, end-start)
	for k := range out {
		out[k] = c.paths.read(start + k)
	}
	return out
}

// geometryColumn adapts the codecs to one geometry attribute type.
type geometryColumn struct {
	t      feature.AttributeType
	top    vector.Vector
	point  pointCodec
	path   pathCodec
	parts  partsCodec
	polys  *vector.List
	nested partsCodec
}

func bindGeometry(t feature.AttributeType, v vector.Vector) (column, error) {
	c := &geometryColumn{t: t, top: v}
	var err error
	switch t {
	case feature.TypePoint:
		c.point, err = bindPoints(v)
	case feature.TypeLineString, feature.TypeMultiPoint:
		c.path, err = bindPaths(v)
	case feature.TypePolygon, feature.TypeMultiLineString:
		c.parts, err = bindParts(v)
	case feature.TypeMultiPolygon:
		list, ok := v.(*vector.List)
		if !ok {
			return nil, fmt.Errorf("%s is not a multipolygon layout", v.DataType())
		}
		c.polys = list
		c.nested, err = bindParts(list.Child())
	default:
		err = fmt.Errorf("%s is not a structured geometry type", t)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *geometryColumn) vector() vector.Vector { return c.top }

func (c *geometryColumn) set(i int, value any) error {
	if value == nil {
		c.top.SetNull(i)
		return nil
	}
	switch g := value.(type) {
	case orb.Point:
		if c.t == feature.TypePoint {
			c.point.write(i, g)
			return nil
		}
	case orb.LineString:
		if c.t == feature.TypeLineString {
			return c.path.write(i, g)
		}
	case orb.MultiPoint:
		if c.t == feature.TypeMultiPoint {
			return c.path.write(i, g)
		}
	case orb.Polygon:
		if c.t == feature.TypePolygon {
			return c.parts.write(i, ringsOf(g))
		}
	case orb.MultiLineString:
		if c.t == feature.TypeMultiLineString {
			return c.parts.write(i, linesOf(g))
		}
	case orb.MultiPolygon:
		if c.t == feature.TypeMultiPolygon {
			start, err := c.polys.StartRow(i, len(g))
			if err != nil {
				return err
			}
			for k, poly := range g {
				if err := c.nested.write(start+k, ringsOf(poly)); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return typeError(value, "orb."+c.t.String())
}

func (c *geometryColumn) get(i int) any {
	if c.top.IsNull(i) {
		return nil
	}
	switch c.t {
	case feature.TypePoint:
		return c.point.read(i)
	case feature.TypeLineString:
		return orb.LineString(c.path.read(i))
	case feature.TypeMultiPoint:
		return orb.MultiPoint(c.path.read(i))
	case feature.TypePolygon:
		parts := c.parts.read(i)
		out := make(orb.Polygon, len(parts))
		for k, p := range parts {
			out[k] = orb.Ring(p)
		}
		return out
	case feature.TypeMultiLineString:
		parts := c.parts.read(i)
		out := make(orb.MultiLineString, len(parts))
		for k, p := range parts {
			out[k] = orb.LineString(p)
		}
		return out
	case feature.TypeMultiPolygon:
		start, end := c.polys.Range(i)
		out := make(orb.MultiPolygon, 0, end-start)
		for k := start; k < end; k++ {
			parts := c.nested.read(k)
			poly := make(orb.Polygon, len(parts))
			for r, p := range parts {
				poly[r] = orb.Ring(p)
			}
			out = append(out, poly)
		}
		return out
	}
	return nil
}

func ringsOf(p orb.Polygon) [][]orb.Point {
	out := make([][]orb.Point, len(p))
	for i, r := range p {
		out[i] = r
	}
	return out
}

func linesOf(m orb.MultiLineString) [][]orb.Point {
	out := make([][]orb.Point, len(m))
	for i, l := range m {
		out[i] = l
	}
	return out
}
