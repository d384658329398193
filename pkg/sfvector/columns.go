package sfvector

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/vector"
)

// column reads and writes one attribute (or the id) at row positions.
// Values are the canonical Go types produced by feature.ConvertValue; nil
// writes a null. Values returned by get never alias vector memory.
type column interface {
	vector() vector.Vector
	set(i int, value any) error
	get(i int) any
}

// bindColumn binds a codec for d over an existing vector. The vector's Arrow
// shape must match the descriptor.
func bindColumn(d feature.AttributeDescriptor, v vector.Vector, log *zap.Logger) (column, error) {
	var (
		c  column
		ok bool
	)
	switch d.Type {
	case feature.TypeString:
		switch t := v.(type) {
		case *vector.Dictionary:
			c, ok = &dictColumn{v: t, log: log}, true
		case *vector.VarBinary:
			c, ok = &stringColumn{v: t}, t.DataType().ID() == arrow.STRING
		}
	case feature.TypeInteger:
		c, ok = bindPrimitive[int32](v)
	case feature.TypeLong:
		c, ok = bindPrimitive[int64](v)
	case feature.TypeFloat:
		c, ok = bindPrimitive[float32](v)
	case feature.TypeDouble:
		c, ok = bindPrimitive[float64](v)
	case feature.TypeBoolean:
		var t *vector.Bool
		if t, ok = v.(*vector.Bool); ok {
			c = &boolColumn{v: t}
		}
	case feature.TypeDate:
		var t *vector.FixedWidth[arrow.Timestamp]
		if t, ok = v.(*vector.FixedWidth[arrow.Timestamp]); ok {
			c = &dateColumn{v: t}
		}
	case feature.TypeUUID:
		var t *vector.FixedSizeBinary
		if t, ok = v.(*vector.FixedSizeBinary); ok && t.ByteWidth() == 16 {
			c = &uuidColumn{v: t}
		}
	case feature.TypeBytes, feature.TypeGeometry:
		var t *vector.VarBinary
		if t, ok = v.(*vector.VarBinary); ok && t.DataType().ID() == arrow.BINARY {
			if d.Type == feature.TypeGeometry {
				c = &wkbColumn{v: t, log: log}
			} else {
				c = &bytesColumn{v: t}
			}
		} else {
			ok = false
		}
	case feature.TypeList:
		var t *vector.List
		if t, ok = v.(*vector.List); ok {
			elem, err := bindColumn(feature.AttributeDescriptor{Name: fieldItem, Type: d.ElementType}, t.Child(), log)
			if err != nil {
				return nil, err
			}
			c = &listColumn{v: t, elem: elem, elemType: d.ElementType}
		}
	default:
		var err error
		c, err = bindGeometry(d.Type, v)
		ok = err == nil
	}
	if !ok || c == nil {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
			"arrow type %s does not hold %s values", v.DataType(), d.Type).
			WithDetail("field", d.Name)
	}
	return c, nil
}

func bindPrimitive[T int32 | int64 | float32 | float64](v vector.Vector) (column, bool) {
	t, ok := v.(*vector.FixedWidth[T])
	if !ok {
		return nil, false
	}
	return &primitiveColumn[T]{v: t}, true
}

func typeError(value any, want string) error {
	return fmt.Errorf("expected %s, got %T", want, value)
}

type primitiveColumn[T int32 | int64 | float32 | float64] struct {
	v *vector.FixedWidth[T]
}

func (c *primitiveColumn[T]) vector() vector.Vector { return c.v }

func (c *primitiveColumn[T]) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	t, ok := value.(T)
	if !ok {
		var zero T
		return typeError(value, fmt.Sprintf("%T", zero))
	}
	c.v.Set(i, t)
	return nil
}

func (c *primitiveColumn[T]) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	return c.v.Get(i)
}

type stringColumn struct {
	v *vector.VarBinary
}

func (c *stringColumn) vector() vector.Vector { return c.v }

func (c *stringColumn) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return typeError(value, "string")
	}
	return c.v.SetString(i, s)
}

func (c *stringColumn) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	return c.v.GetString(i)
}

type dictColumn struct {
	v   *vector.Dictionary
	log *zap.Logger
}

func (c *dictColumn) vector() vector.Vector { return c.v }

func (c *dictColumn) set(i int, value any) error {
	if value == nil {
		c.v.Reserve(i + 1)
		c.v.SetNull(i)
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return typeError(value, "string")
	}
	if !c.v.Set(i, s) {
		c.log.Debug("value not in dictionary, writing null",
			zap.String("field", c.v.Name()),
			zap.String("value", s),
			zap.Int("row", i))
	}
	return nil
}

func (c *dictColumn) get(i int) any {
	if s, ok := c.v.Get(i); ok {
		return s
	}
	return nil
}

type boolColumn struct {
	v *vector.Bool
}

func (c *boolColumn) vector() vector.Vector { return c.v }

func (c *boolColumn) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	b, ok := value.(bool)
	if !ok {
		return typeError(value, "bool")
	}
	c.v.Set(i, b)
	return nil
}

func (c *boolColumn) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	return c.v.Get(i)
}

type dateColumn struct {
	v *vector.FixedWidth[arrow.Timestamp]
}

func (c *dateColumn) vector() vector.Vector { return c.v }

func (c *dateColumn) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	t, ok := value.(time.Time)
	if !ok {
		return typeError(value, "time.Time")
	}
	c.v.Set(i, arrow.Timestamp(t.UnixMilli()))
	return nil
}

func (c *dateColumn) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	return time.UnixMilli(int64(c.v.Get(i))).UTC()
}

type uuidColumn struct {
	v *vector.FixedSizeBinary
}

func (c *uuidColumn) vector() vector.Vector { return c.v }

func (c *uuidColumn) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return typeError(value, "uuid.UUID")
	}
	c.v.Set(i, id[:])
	return nil
}

func (c *uuidColumn) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	var id uuid.UUID
	copy(id[:], c.v.Get(i))
	return id
}

type bytesColumn struct {
	v *vector.VarBinary
}

func (c *bytesColumn) vector() vector.Vector { return c.v }

func (c *bytesColumn) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return typeError(value, "[]byte")
	}
	return c.v.Set(i, b)
}

func (c *bytesColumn) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	return bytes.Clone(c.v.Get(i))
}

// wkbColumn stores arbitrary geometries as WKB.
type wkbColumn struct {
	v   *vector.VarBinary
	log *zap.Logger
}

func (c *wkbColumn) vector() vector.Vector { return c.v }

func (c *wkbColumn) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	g, ok := value.(orb.Geometry)
	if !ok {
		return typeError(value, "orb.Geometry")
	}
	b, err := wkb.Marshal(g)
	if err != nil {
		return err
	}
	return c.v.Set(i, b)
}

func (c *wkbColumn) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	g, err := wkb.Unmarshal(c.v.Get(i))
	if err != nil {
		c.log.Warn("cannot decode WKB geometry",
			zap.String("field", c.v.Name()),
			zap.Int("row", i),
			zap.Error(err))
		return nil
	}
	return g
}

type listColumn struct {
	v        *vector.List
	elem     column
	elemType feature.AttributeType
}

func (c *listColumn) vector() vector.Vector { return c.v }

func (c *listColumn) set(i int, value any) error {
	if value == nil {
		c.v.SetNull(i)
		return nil
	}
	items := feature.ListItems(value)
	if items == nil {
		return typeError(value, "list")
	}
	start, err := c.v.StartRow(i, len(items))
	if err != nil {
		return err
	}
	for k, item := range items {
		if err := c.elem.set(start+k, item); err != nil {
			return err
		}
	}
	return nil
}

func (c *listColumn) get(i int) any {
	if c.v.IsNull(i) {
		return nil
	}
	start, end := c.v.Range(i)
	items := make([]any, 0, end-start)
	for k := start; k < end; k++ {
		items = append(items, c.elem.get(k))
	}
	return feature.TypedList(items, c.elemType)
}

// fidColumn stores feature identifiers according to a FIDEncoding.
type fidColumn struct {
	encoding FIDEncoding
	full     *vector.VarBinary
	hashed   *vector.FixedWidth[int32]
}

func newFIDColumn(e FIDEncoding, v vector.Vector) (*fidColumn, error) {
	c := &fidColumn{encoding: e}
	ok := true
	switch e {
	case FIDFull:
		c.full, ok = v.(*vector.VarBinary)
	case FIDHashed:
		c.hashed, ok = v.(*vector.FixedWidth[int32])
	}
	if !ok {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
			"arrow type %s cannot hold %s feature ids", v.DataType(), e).
			WithDetail("field", feature.IDField)
	}
	return c, nil
}

// HashFID is the 32-bit identifier stored by FIDHashed.
func HashFID(id string) int32 {
	return int32(xxhash.Sum64String(id))
}

func (c *fidColumn) vector() vector.Vector {
	if c.full != nil {
		return c.full
	}
	return c.hashed
}

func (c *fidColumn) set(i int, value any) error {
	if value == nil {
		c.vector().SetNull(i)
		return nil
	}
	id, _ := value.(string)
	switch c.encoding {
	case FIDFull:
		return c.full.SetString(i, id)
	case FIDHashed:
		c.hashed.Set(i, HashFID(id))
	}
	return nil
}

func (c *fidColumn) get(i int) any {
	switch c.encoding {
	case FIDFull:
		return c.full.GetString(i)
	case FIDHashed:
		return strconv.FormatInt(int64(c.hashed.Get(i)), 10)
	}
	return nil
}
