package vector

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// indexVector is a FixedWidth vector of dictionary indices.
type indexVector interface {
	Vector
	setIndex(i, idx int)
	index(i int) int
}

type dictIndices[T int8 | int16 | int32] struct {
	*FixedWidth[T]
}

func (d dictIndices[T]) setIndex(i, idx int) { d.Set(i, T(idx)) }
func (d dictIndices[T]) index(i int) int     { return int(d.Get(i)) }

// IndexTypeFor returns the narrowest signed index type able to address n
// dictionary values.
func IndexTypeFor(n int) arrow.DataType {
	switch {
	case n <= math.MaxInt8+1:
		return arrow.PrimitiveTypes.Int8
	case n <= math.MaxInt16+1:
		return arrow.PrimitiveTypes.Int16
	default:
		return arrow.PrimitiveTypes.Int32
	}
}

// Dictionary is a dictionary-encoded utf8 vector over a fixed value list.
type Dictionary struct {
	indices  indexVector
	values   []string
	lookup   map[string]int
	dict     arrow.ArrayData
	metadata arrow.Metadata
}

// NewDictionary creates a dictionary vector for values. The index width is
// chosen from len(values).
func NewDictionary(name string, values []string, mem memory.Allocator, capacity int) *Dictionary {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewStringBuilder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewArray()
	defer arr.Release()
	dict := arr.Data()
	dict.Retain()
	return newDictionary(newIndexVector(name, IndexTypeFor(len(values)), mem, capacity), values, dict)
}

func newIndexVector(name string, dtype arrow.DataType, mem memory.Allocator, capacity int) indexVector {
	switch dtype.ID() {
	case arrow.INT8:
		return dictIndices[int8]{NewFixedWidth[int8](name, dtype, mem, capacity)}
	case arrow.INT16:
		return dictIndices[int16]{NewFixedWidth[int16](name, dtype, mem, capacity)}
	default:
		return dictIndices[int32]{NewFixedWidth[int32](name, dtype, mem, capacity)}
	}
}

func newDictionary(indices indexVector, values []string, dict arrow.ArrayData) *Dictionary {
	lookup := make(map[string]int, len(values))
	for i, s := range values {
		if _, ok := lookup[s]; !ok {
			lookup[s] = i
		}
	}
	return &Dictionary{indices: indices, values: values, lookup: lookup, dict: dict}
}

func (v *Dictionary) Name() string { return v.indices.Name() }

func (v *Dictionary) DataType() arrow.DataType {
	return &arrow.DictionaryType{IndexType: v.indices.DataType(), ValueType: arrow.BinaryTypes.String}
}

func (v *Dictionary) Field() arrow.Field {
	return arrow.Field{Name: v.Name(), Type: v.DataType(), Nullable: true, Metadata: v.metadata}
}

func (v *Dictionary) Metadata() arrow.Metadata      { return v.metadata }
func (v *Dictionary) SetMetadata(md arrow.Metadata) { v.metadata = md }

// Values returns the dictionary values.
func (v *Dictionary) Values() []string { return v.values }

// Set writes value at row i. It returns false and marks the row null when
// value is not in the dictionary.
func (v *Dictionary) Set(i int, value string) bool {
	idx, ok := v.lookup[value]
	if !ok {
		v.indices.Reserve(i + 1)
		v.indices.SetNull(i)
		return false
	}
	v.indices.setIndex(i, idx)
	return true
}

// Get returns the value at row i, or false when the row is null.
func (v *Dictionary) Get(i int) (string, bool) {
	if v.indices.IsNull(i) {
		return "", false
	}
	idx := v.indices.index(i)
	if idx < 0 || idx >= len(v.values) {
		return "", false
	}
	return v.values[idx], true
}

func (v *Dictionary) Capacity() int       { return v.indices.Capacity() }
func (v *Dictionary) ValueCount() int     { return v.indices.ValueCount() }
func (v *Dictionary) SetValueCount(n int) { v.indices.SetValueCount(n) }
func (v *Dictionary) IsNull(i int) bool   { return v.indices.IsNull(i) }
func (v *Dictionary) SetNull(i int)       { v.indices.SetNull(i) }
func (v *Dictionary) NullCount() int      { return v.indices.NullCount() }
func (v *Dictionary) Reserve(n int)       { v.indices.Reserve(n) }
func (v *Dictionary) Reallocate()         { v.indices.Reallocate() }
func (v *Dictionary) Reset()              { v.indices.Reset() }

func (v *Dictionary) ArrayData() arrow.ArrayData {
	idx := v.indices.ArrayData()
	defer idx.Release()
	return array.NewDataWithDictionary(v.DataType(), idx.Len(), idx.Buffers(), idx.NullN(), 0,
		v.dict.(*array.Data))
}

func (v *Dictionary) Release() {
	v.indices.Release()
	if v.dict != nil {
		v.dict.Release()
		v.dict = nil
	}
}
