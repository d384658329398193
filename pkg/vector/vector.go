// Package vector provides named, growable, random-access columnar vectors
// laid out in the Arrow format and backed by an Arrow memory.Allocator.
//
// Arrow Go arrays are immutable and builders only append. The vectors here
// fill the gap: values are written in place by row position, capacity is
// grown explicitly, and ArrayData exports the first ValueCount rows as Arrow
// data without copying.
//
// Fixed-width vectors accept writes in any order. Variable-width vectors
// (VarBinary, List) store rows contiguously and therefore accept writes in
// non-decreasing row order only: skipped rows become null, and writing a row
// at or before the last written row returns ErrOutOfOrder. Truncate rewinds
// such a vector so that rows can be written again.
//
// Growing a vector allocates new buffers and releases the old ones; Arrow
// data exported before the growth keeps its own references and stays valid.
//
// Vectors are not safe for concurrent mutation.
package vector

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DefaultCapacity is the row capacity used when none is given.
const DefaultCapacity = 8192

// minCapacity is the capacity an empty vector grows to.
const minCapacity = 16

// ErrOutOfOrder is returned when a variable-width vector is written at or
// before its last written row.
var ErrOutOfOrder = errors.New("vector: variable-width row written out of order")

// Vector is a named, typed, growable columnar container.
type Vector interface {
	// Name returns the field name.
	Name() string
	// DataType returns the Arrow data type, including children.
	DataType() arrow.DataType
	// Field returns the Arrow field describing the vector.
	Field() arrow.Field
	// Capacity returns the number of rows that can be written without growing.
	Capacity() int
	// ValueCount returns the number of finalized rows.
	ValueCount() int
	// SetValueCount finalizes the number of valid rows.
	SetValueCount(n int)
	// IsNull reports whether row i is null.
	IsNull(i int) bool
	// SetNull marks row i null.
	SetNull(i int)
	// NullCount counts null rows among the first ValueCount rows.
	NullCount() int
	// Reserve grows the vector until Capacity() >= n.
	Reserve(n int)
	// Reallocate doubles the capacity.
	Reallocate()
	// Reset zeroes the value count and clears all rows, keeping capacity.
	// Arrays exported earlier are left intact.
	Reset()
	// ArrayData exports the first ValueCount rows. The caller must release it.
	ArrayData() arrow.ArrayData
	// Release frees the vector's buffers.
	Release()
}

// Truncater is implemented by variable-width vectors.
type Truncater interface {
	// LastSet returns the last written row, or -1.
	LastSet() int
	// Truncate discards rows >= row so they can be written again.
	Truncate(row int)
}

// Metadata is implemented by all vectors in this package.
type Metadata interface {
	Metadata() arrow.Metadata
	SetMetadata(md arrow.Metadata)
}

// base holds the state shared by all vectors: a validity bitmap sized to the
// capacity and the finalized value count.
type base struct {
	name     string
	metadata arrow.Metadata
	mem      memory.Allocator
	validity *memory.Buffer
	capacity int
	count    int
}

func newBase(name string, mem memory.Allocator, capacity int) base {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if capacity < 0 {
		capacity = 0
	}
	return base{
		name:     name,
		mem:      mem,
		validity: newBuffer(mem, bitmapBytes(capacity)),
		capacity: capacity,
	}
}

func (b *base) Name() string                    { return b.name }
func (b *base) Capacity() int                   { return b.capacity }
func (b *base) ValueCount() int                 { return b.count }
func (b *base) Metadata() arrow.Metadata        { return b.metadata }
func (b *base) SetMetadata(md arrow.Metadata)   { b.metadata = md }
func (b *base) Allocator() memory.Allocator     { return b.mem }
func (b *base) setValid(i int)                  { bitutil.SetBit(b.validity.Bytes(), i) }
func (b *base) validityBytes() []byte           { return b.validity.Bytes() }
func (b *base) field(dt arrow.DataType) arrow.Field {
	return arrow.Field{Name: b.name, Type: dt, Nullable: true, Metadata: b.metadata}
}

func (b *base) IsNull(i int) bool {
	if i < 0 || i >= b.capacity {
		return true
	}
	return !bitutil.BitIsSet(b.validity.Bytes(), i)
}

func (b *base) SetNull(i int) {
	bitutil.ClearBit(b.validity.Bytes(), i)
}

func (b *base) NullCount() int {
	return b.count - bitutil.CountSetBits(b.validity.Bytes(), 0, b.count)
}

// growValidity resizes the bitmap for a new capacity.
func (b *base) growValidity(capacity int) {
	b.validity = growBuffer(b.mem, b.validity, bitmapBytes(capacity))
}

func (b *base) clearValidity() {
	b.validity = freshBuffer(b.mem, b.validity)
	b.count = 0
}

func (b *base) releaseValidity() {
	if b.validity != nil {
		b.validity.Release()
		b.validity = nil
	}
}

// doubled is the capacity after one Reallocate. Only an empty vector jumps
// to minCapacity.
func doubled(capacity int) int {
	if capacity == 0 {
		return minCapacity
	}
	return capacity * 2
}

// nextCapacity doubles the capacity until it covers n.
func nextCapacity(capacity, n int) int {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	for capacity < n {
		capacity *= 2
	}
	return capacity
}

func bitmapBytes(n int) int {
	return int(bitutil.BytesForBits(int64(n)))
}

// newBuffer allocates a zeroed buffer of size bytes.
func newBuffer(mem memory.Allocator, size int) *memory.Buffer {
	buf := memory.NewResizableBuffer(mem)
	buf.Resize(size)
	clear(buf.Bytes())
	return buf
}

// growBuffer allocates a zeroed buffer of size bytes holding a copy of old,
// then releases old.
func growBuffer(mem memory.Allocator, old *memory.Buffer, size int) *memory.Buffer {
	buf := newBuffer(mem, size)
	if old != nil {
		copy(buf.Bytes(), old.Bytes())
		old.Release()
	}
	return buf
}

// freshBuffer swaps old for a zeroed buffer of the same size. Arrays exported
// before the swap keep their own reference to old.
func freshBuffer(mem memory.Allocator, old *memory.Buffer) *memory.Buffer {
	buf := newBuffer(mem, old.Len())
	old.Release()
	return buf
}

// retainedBuffer returns buf retained, or a zeroed buffer of size bytes if
// buf is nil or too short.
func retainedBuffer(mem memory.Allocator, buf *memory.Buffer, size int) *memory.Buffer {
	if buf == nil {
		return newBuffer(mem, size)
	}
	if buf.Len() < size {
		out := newBuffer(mem, size)
		copy(out.Bytes(), buf.Bytes())
		return out
	}
	buf.Retain()
	return buf
}
