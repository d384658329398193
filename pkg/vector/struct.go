package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// Struct is a vector of named child vectors sharing one row space. Children
// are kept at the struct's capacity.
type Struct struct {
	base
	children []Vector
	index    map[string]int
}

// NewStruct creates an empty struct vector.
func NewStruct(name string, mem memory.Allocator, capacity int) *Struct {
	return &Struct{base: newBase(name, mem, capacity), index: make(map[string]int)}
}

// AddChild appends a child, reserving it to the struct's capacity. The struct
// takes ownership of child.
func (v *Struct) AddChild(child Vector) error {
	if _, ok := v.index[child.Name()]; ok {
		return geoerrors.New(geoerrors.ErrorTypeConflict, "duplicate struct child").
			WithDetail("field", child.Name())
	}
	child.Reserve(v.capacity)
	v.index[child.Name()] = len(v.children)
	v.children = append(v.children, child)
	return nil
}

// Child returns the named child, or nil.
func (v *Struct) Child(name string) Vector {
	if i, ok := v.index[name]; ok {
		return v.children[i]
	}
	return nil
}

// ChildAt returns the i-th child.
func (v *Struct) ChildAt(i int) Vector { return v.children[i] }

// NumChildren returns the number of children.
func (v *Struct) NumChildren() int { return len(v.children) }

// Fields returns the child fields in order.
func (v *Struct) Fields() []arrow.Field {
	fields := make([]arrow.Field, len(v.children))
	for i, c := range v.children {
		fields[i] = c.Field()
	}
	return fields
}

func (v *Struct) DataType() arrow.DataType { return arrow.StructOf(v.Fields()...) }
func (v *Struct) Field() arrow.Field       { return v.field(v.DataType()) }

// SetValueCount marks rows [0, n) valid and finalizes every child to n rows.
func (v *Struct) SetValueCount(n int) {
	if n > v.capacity {
		v.Reserve(n)
	}
	bitutil.SetBitsTo(v.validity.Bytes(), 0, int64(n), true)
	v.count = n
	for _, c := range v.children {
		c.SetValueCount(n)
	}
}

func (v *Struct) Reserve(n int) {
	if n <= v.capacity {
		return
	}
	v.resize(nextCapacity(v.capacity, n))
}

// Reallocate doubles the struct and grows each child by doubling until it
// covers the new capacity.
func (v *Struct) Reallocate() {
	capacity := doubled(v.capacity)
	v.growValidity(capacity)
	v.capacity = capacity
	for _, c := range v.children {
		for c.Capacity() < capacity {
			c.Reallocate()
		}
	}
}

func (v *Struct) resize(capacity int) {
	v.growValidity(capacity)
	v.capacity = capacity
	for _, c := range v.children {
		c.Reserve(capacity)
	}
}

func (v *Struct) Reset() {
	v.clearValidity()
	for _, c := range v.children {
		c.Reset()
	}
}

func (v *Struct) ArrayData() arrow.ArrayData {
	children := make([]arrow.ArrayData, len(v.children))
	for i, c := range v.children {
		children[i] = c.ArrayData()
	}
	defer func() {
		for _, c := range children {
			c.Release()
		}
	}()
	return array.NewData(v.DataType(), v.count, []*memory.Buffer{v.validity}, children, v.NullCount(), 0)
}

// Schema returns the children as an Arrow schema carrying the struct's
// metadata.
func (v *Struct) Schema() *arrow.Schema {
	md := v.metadata
	return arrow.NewSchema(v.Fields(), &md)
}

// Record exports the first ValueCount rows as a record batch, one column per
// child. The caller must release it.
func (v *Struct) Record() arrow.Record {
	cols := make([]arrow.Array, len(v.children))
	for i, c := range v.children {
		data := c.ArrayData()
		cols[i] = array.MakeFromData(data)
		data.Release()
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	return array.NewRecord(v.Schema(), cols, int64(v.count))
}

func (v *Struct) Release() {
	v.releaseValidity()
	for _, c := range v.children {
		c.Release()
	}
	v.children = nil
	v.index = map[string]int{}
}
