package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// List is a variable-length list vector. A row is written by StartRow, which
// reserves a run of child positions, followed by writes to the child.
type List struct {
	base
	child   Vector
	offsets *memory.Buffer
	lastSet int
}

// NewList creates a list vector over child. The list takes ownership of
// child.
func NewList(name string, child Vector, mem memory.Allocator, capacity int) *List {
	v := &List{base: newBase(name, mem, capacity), child: child, lastSet: -1}
	v.offsets = newBuffer(v.mem, (v.capacity+1)*4)
	return v
}

func (v *List) DataType() arrow.DataType { return arrow.ListOfField(v.child.Field()) }
func (v *List) Field() arrow.Field       { return v.field(v.DataType()) }
func (v *List) Child() Vector            { return v.child }
func (v *List) LastSet() int             { return v.lastSet }

func (v *List) offsetValues() []int32 { return castSlice[int32](v.offsets.Bytes()) }

// StartRow marks row i valid with n elements and returns the child position
// of its first element. The child is grown to hold them.
func (v *List) StartRow(i, n int) (int, error) {
	if i <= v.lastSet {
		return 0, ErrOutOfOrder
	}
	if i >= v.capacity {
		v.Reserve(i + 1)
	}
	v.fillTo(i)
	offsets := v.offsetValues()
	start := int(offsets[i])
	offsets[i+1] = int32(start + n)
	v.child.Reserve(start + n)
	v.setValid(i)
	v.lastSet = i
	return start, nil
}

// Range returns the child positions [start, end) of row i.
func (v *List) Range(i int) (int, int) {
	offsets := v.offsetValues()
	return int(offsets[i]), int(offsets[i+1])
}

func (v *List) SetNull(i int) {
	if i > v.lastSet {
		v.fillTo(i + 1)
		v.lastSet = i
		return
	}
	v.base.SetNull(i)
}

func (v *List) fillTo(n int) {
	if n > v.capacity {
		v.Reserve(n)
	}
	offsets := v.offsetValues()
	for j := v.lastSet + 1; j < n; j++ {
		offsets[j+1] = offsets[j]
		bitutil.ClearBit(v.validity.Bytes(), j)
	}
}

func (v *List) Truncate(row int) {
	if row < 0 {
		row = 0
	}
	if row > v.lastSet {
		return
	}
	bitutil.SetBitsTo(v.validity.Bytes(), int64(row), int64(v.lastSet-row+1), false)
	v.lastSet = row - 1
	if v.count > row {
		v.count = row
	}
	if t, ok := v.child.(Truncater); ok {
		t.Truncate(int(v.offsetValues()[row]))
	}
}

func (v *List) SetValueCount(n int) {
	if v.lastSet < n-1 {
		v.fillTo(n)
		v.lastSet = n - 1
	}
	v.count = n
	v.child.SetValueCount(int(v.offsetValues()[n]))
}

func (v *List) Reserve(n int) {
	if n <= v.capacity {
		return
	}
	v.resize(nextCapacity(v.capacity, n))
}

func (v *List) Reallocate() { v.resize(doubled(v.capacity)) }

func (v *List) resize(capacity int) {
	v.growValidity(capacity)
	v.offsets = growBuffer(v.mem, v.offsets, (capacity+1)*4)
	v.capacity = capacity
}

func (v *List) Reset() {
	v.clearValidity()
	v.offsets = freshBuffer(v.mem, v.offsets)
	v.lastSet = -1
	v.child.Reset()
}

func (v *List) ArrayData() arrow.ArrayData {
	child := v.child.ArrayData()
	defer child.Release()
	return array.NewData(v.DataType(), v.count, []*memory.Buffer{v.validity, v.offsets},
		[]arrow.ArrayData{child}, v.NullCount(), 0)
}

func (v *List) Release() {
	v.releaseValidity()
	if v.offsets != nil {
		v.offsets.Release()
		v.offsets = nil
	}
	if v.child != nil {
		v.child.Release()
		v.child = nil
	}
}

// FixedSizeList holds exactly size child elements per row. Row i occupies
// child positions [i*size, (i+1)*size).
type FixedSizeList struct {
	base
	size  int
	child Vector
}

// NewFixedSizeList creates a fixed size list vector over child and reserves
// capacity*size child positions. The list takes ownership of child.
func NewFixedSizeList(name string, size int, child Vector, mem memory.Allocator, capacity int) *FixedSizeList {
	v := &FixedSizeList{base: newBase(name, mem, capacity), size: size, child: child}
	child.Reserve(v.capacity * size)
	return v
}

func (v *FixedSizeList) DataType() arrow.DataType {
	return arrow.FixedSizeListOfField(int32(v.size), v.child.Field())
}
func (v *FixedSizeList) Field() arrow.Field { return v.field(v.DataType()) }
func (v *FixedSizeList) Child() Vector      { return v.child }
func (v *FixedSizeList) Size() int          { return v.size }

// StartRow marks row i valid and returns the child position of its first
// element.
func (v *FixedSizeList) StartRow(i int) int {
	if i >= v.capacity {
		v.Reserve(i + 1)
	}
	v.setValid(i)
	return i * v.size
}

func (v *FixedSizeList) SetValueCount(n int) {
	if n > v.capacity {
		v.Reserve(n)
	}
	v.count = n
	v.child.SetValueCount(n * v.size)
}

func (v *FixedSizeList) Reserve(n int) {
	if n <= v.capacity {
		return
	}
	v.resize(nextCapacity(v.capacity, n))
}

func (v *FixedSizeList) Reallocate() { v.resize(doubled(v.capacity)) }

func (v *FixedSizeList) resize(capacity int) {
	v.growValidity(capacity)
	v.child.Reserve(capacity * v.size)
	v.capacity = capacity
}

func (v *FixedSizeList) Reset() {
	v.clearValidity()
	v.child.Reset()
}

func (v *FixedSizeList) ArrayData() arrow.ArrayData {
	child := v.child.ArrayData()
	defer child.Release()
	return array.NewData(v.DataType(), v.count, []*memory.Buffer{v.validity},
		[]arrow.ArrayData{child}, v.NullCount(), 0)
}

func (v *FixedSizeList) Release() {
	v.releaseValidity()
	if v.child != nil {
		v.child.Release()
		v.child = nil
	}
}
