package vector

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Numeric is the set of primitive value types a FixedWidth vector can hold.
type Numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// FixedWidth is a vector of primitive values. Rows can be written in any
// order.
type FixedWidth[T Numeric] struct {
	base
	dtype arrow.DataType
	data  *memory.Buffer
}

// NewFixedWidth creates a fixed-width vector. dtype must have the same byte
// width as T.
func NewFixedWidth[T Numeric](name string, dtype arrow.DataType, mem memory.Allocator, capacity int) *FixedWidth[T] {
	v := &FixedWidth[T]{base: newBase(name, mem, capacity), dtype: dtype}
	v.data = newBuffer(v.mem, v.capacity*v.width())
	return v
}

// NewInt32 creates an int32 vector.
func NewInt32(name string, mem memory.Allocator, capacity int) *FixedWidth[int32] {
	return NewFixedWidth[int32](name, arrow.PrimitiveTypes.Int32, mem, capacity)
}

// NewInt64 creates an int64 vector.
func NewInt64(name string, mem memory.Allocator, capacity int) *FixedWidth[int64] {
	return NewFixedWidth[int64](name, arrow.PrimitiveTypes.Int64, mem, capacity)
}

// NewFloat32 creates a float32 vector.
func NewFloat32(name string, mem memory.Allocator, capacity int) *FixedWidth[float32] {
	return NewFixedWidth[float32](name, arrow.PrimitiveTypes.Float32, mem, capacity)
}

// NewFloat64 creates a float64 vector.
func NewFloat64(name string, mem memory.Allocator, capacity int) *FixedWidth[float64] {
	return NewFixedWidth[float64](name, arrow.PrimitiveTypes.Float64, mem, capacity)
}

// NewTimestampMillis creates a timestamp[ms, UTC] vector.
func NewTimestampMillis(name string, mem memory.Allocator, capacity int) *FixedWidth[arrow.Timestamp] {
	return NewFixedWidth[arrow.Timestamp](name, arrow.FixedWidthTypes.Timestamp_ms, mem, capacity)
}

func (v *FixedWidth[T]) width() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func (v *FixedWidth[T]) DataType() arrow.DataType { return v.dtype }
func (v *FixedWidth[T]) Field() arrow.Field       { return v.field(v.dtype) }

// Values returns the backing slice for all Capacity rows.
func (v *FixedWidth[T]) Values() []T { return castSlice[T](v.data.Bytes()) }

// Set writes row i, growing the vector if needed.
func (v *FixedWidth[T]) Set(i int, value T) {
	if i >= v.capacity {
		v.Reserve(i + 1)
	}
	v.Values()[i] = value
	v.setValid(i)
}

// Get returns row i. The value of a null row is unspecified.
func (v *FixedWidth[T]) Get(i int) T { return v.Values()[i] }

func (v *FixedWidth[T]) SetValueCount(n int) {
	if n > v.capacity {
		v.Reserve(n)
	}
	v.count = n
}

func (v *FixedWidth[T]) Reserve(n int) {
	if n <= v.capacity {
		return
	}
	v.resize(nextCapacity(v.capacity, n))
}

func (v *FixedWidth[T]) Reallocate() { v.resize(doubled(v.capacity)) }

func (v *FixedWidth[T]) resize(capacity int) {
	v.growValidity(capacity)
	v.data = growBuffer(v.mem, v.data, capacity*v.width())
	v.capacity = capacity
}

func (v *FixedWidth[T]) Reset() {
	v.clearValidity()
	v.data = freshBuffer(v.mem, v.data)
}

func (v *FixedWidth[T]) ArrayData() arrow.ArrayData {
	return array.NewData(v.dtype, v.count, []*memory.Buffer{v.validity, v.data}, nil, v.NullCount(), 0)
}

func (v *FixedWidth[T]) Release() {
	v.releaseValidity()
	if v.data != nil {
		v.data.Release()
		v.data = nil
	}
}

// Bool is a bit-packed boolean vector.
type Bool struct {
	base
	data *memory.Buffer
}

// NewBool creates a boolean vector.
func NewBool(name string, mem memory.Allocator, capacity int) *Bool {
	v := &Bool{base: newBase(name, mem, capacity)}
	v.data = newBuffer(v.mem, bitmapBytes(v.capacity))
	return v
}

func (v *Bool) DataType() arrow.DataType { return arrow.FixedWidthTypes.Boolean }
func (v *Bool) Field() arrow.Field       { return v.field(v.DataType()) }

func (v *Bool) Set(i int, value bool) {
	if i >= v.capacity {
		v.Reserve(i + 1)
	}
	bitutil.SetBitTo(v.data.Bytes(), i, value)
	v.setValid(i)
}

func (v *Bool) Get(i int) bool { return bitutil.BitIsSet(v.data.Bytes(), i) }

func (v *Bool) SetValueCount(n int) {
	if n > v.capacity {
		v.Reserve(n)
	}
	v.count = n
}

func (v *Bool) Reserve(n int) {
	if n <= v.capacity {
		return
	}
	v.resize(nextCapacity(v.capacity, n))
}

func (v *Bool) Reallocate() { v.resize(doubled(v.capacity)) }

func (v *Bool) resize(capacity int) {
	v.growValidity(capacity)
	v.data = growBuffer(v.mem, v.data, bitmapBytes(capacity))
	v.capacity = capacity
}

func (v *Bool) Reset() {
	v.clearValidity()
	v.data = freshBuffer(v.mem, v.data)
}

func (v *Bool) ArrayData() arrow.ArrayData {
	return array.NewData(v.DataType(), v.count, []*memory.Buffer{v.validity, v.data}, nil, v.NullCount(), 0)
}

func (v *Bool) Release() {
	v.releaseValidity()
	if v.data != nil {
		v.data.Release()
		v.data = nil
	}
}

// FixedSizeBinary stores byte strings of one fixed width, such as UUIDs.
type FixedSizeBinary struct {
	base
	byteWidth int
	data      *memory.Buffer
}

// NewFixedSizeBinary creates a fixed_size_binary[byteWidth] vector.
func NewFixedSizeBinary(name string, byteWidth int, mem memory.Allocator, capacity int) *FixedSizeBinary {
	v := &FixedSizeBinary{base: newBase(name, mem, capacity), byteWidth: byteWidth}
	v.data = newBuffer(v.mem, v.capacity*byteWidth)
	return v
}

func (v *FixedSizeBinary) DataType() arrow.DataType {
	return &arrow.FixedSizeBinaryType{ByteWidth: v.byteWidth}
}
func (v *FixedSizeBinary) Field() arrow.Field { return v.field(v.DataType()) }
func (v *FixedSizeBinary) ByteWidth() int     { return v.byteWidth }

// Set copies value into row i. Short values are zero padded and long values
// truncated to the byte width.
func (v *FixedSizeBinary) Set(i int, value []byte) {
	if i >= v.capacity {
		v.Reserve(i + 1)
	}
	row := v.Get(i)
	n := copy(row, value)
	clear(row[n:])
	v.setValid(i)
}

// Get returns a view of row i.
func (v *FixedSizeBinary) Get(i int) []byte {
	start := i * v.byteWidth
	return v.data.Bytes()[start : start+v.byteWidth]
}

func (v *FixedSizeBinary) SetValueCount(n int) {
	if n > v.capacity {
		v.Reserve(n)
	}
	v.count = n
}

func (v *FixedSizeBinary) Reserve(n int) {
	if n <= v.capacity {
		return
	}
	v.resize(nextCapacity(v.capacity, n))
}

func (v *FixedSizeBinary) Reallocate() { v.resize(doubled(v.capacity)) }

func (v *FixedSizeBinary) resize(capacity int) {
	v.growValidity(capacity)
	v.data = growBuffer(v.mem, v.data, capacity*v.byteWidth)
	v.capacity = capacity
}

func (v *FixedSizeBinary) Reset() {
	v.clearValidity()
	v.data = freshBuffer(v.mem, v.data)
}

func (v *FixedSizeBinary) ArrayData() arrow.ArrayData {
	return array.NewData(v.DataType(), v.count, []*memory.Buffer{v.validity, v.data}, nil, v.NullCount(), 0)
}

func (v *FixedSizeBinary) Release() {
	v.releaseValidity()
	if v.data != nil {
		v.data.Release()
		v.data = nil
	}
}

func castSlice[T any](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/int(unsafe.Sizeof(zero)))
}
