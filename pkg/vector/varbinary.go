package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const bytesPerRow = 8

// VarBinary is a utf8 or binary vector with int32 offsets.
type VarBinary struct {
	base
	dtype   arrow.DataType
	offsets *memory.Buffer
	data    *memory.Buffer
	lastSet int
}

// NewString creates a utf8 vector.
func NewString(name string, mem memory.Allocator, capacity int) *VarBinary {
	return newVarBinary(name, arrow.BinaryTypes.String, mem, capacity)
}

// NewBinary creates a binary vector.
func NewBinary(name string, mem memory.Allocator, capacity int) *VarBinary {
	return newVarBinary(name, arrow.BinaryTypes.Binary, mem, capacity)
}

func newVarBinary(name string, dtype arrow.DataType, mem memory.Allocator, capacity int) *VarBinary {
	v := &VarBinary{base: newBase(name, mem, capacity), dtype: dtype, lastSet: -1}
	v.offsets = newBuffer(v.mem, (v.capacity+1)*4)
	v.data = newBuffer(v.mem, v.capacity*bytesPerRow)
	return v
}

func (v *VarBinary) DataType() arrow.DataType { return v.dtype }
func (v *VarBinary) Field() arrow.Field       { return v.field(v.dtype) }
func (v *VarBinary) LastSet() int             { return v.lastSet }

func (v *VarBinary) offsetValues() []int32 { return castSlice[int32](v.offsets.Bytes()) }

// Set writes row i. Rows between the last written row and i become null.
func (v *VarBinary) Set(i int, value []byte) error {
	if i <= v.lastSet {
		return ErrOutOfOrder
	}
	if i >= v.capacity {
		v.Reserve(i + 1)
	}
	v.fillTo(i)
	offsets := v.offsetValues()
	start := int(offsets[i])
	end := start + len(value)
	if end > v.data.Len() {
		size := v.data.Len() * 2
		if size < end {
			size = end
		}
		v.data = growBuffer(v.mem, v.data, size)
	}
	copy(v.data.Bytes()[start:end], value)
	offsets[i+1] = int32(end)
	v.setValid(i)
	v.lastSet = i
	return nil
}

// SetString writes a string value at row i.
func (v *VarBinary) SetString(i int, value string) error {
	return v.Set(i, []byte(value))
}

// SetNull marks row i null. Past the last written row it also advances the
// write position.
func (v *VarBinary) SetNull(i int) {
	if i > v.lastSet {
		v.fillTo(i + 1)
		v.lastSet = i
		return
	}
	v.base.SetNull(i)
}

// fillTo makes rows lastSet+1 .. n-1 empty nulls, growing as needed.
func (v *VarBinary) fillTo(n int) {
	if n > v.capacity {
		v.Reserve(n)
	}
	offsets := v.offsetValues()
	for j := v.lastSet + 1; j < n; j++ {
		offsets[j+1] = offsets[j]
		bitutil.ClearBit(v.validity.Bytes(), j)
	}
}

// Get returns a view of row i.
func (v *VarBinary) Get(i int) []byte {
	offsets := v.offsetValues()
	return v.data.Bytes()[offsets[i]:offsets[i+1]]
}

// GetString returns row i as a string.
func (v *VarBinary) GetString(i int) string { return string(v.Get(i)) }

func (v *VarBinary) Truncate(row int) {
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
}

func (v *VarBinary) SetValueCount(n int) {
	if v.lastSet < n-1 {
		v.fillTo(n)
		v.lastSet = n - 1
	}
	v.count = n
}

func (v *VarBinary) Reserve(n int) {
	if n <= v.capacity {
		return
	}
	v.resize(nextCapacity(v.capacity, n))
}

func (v *VarBinary) Reallocate() { v.resize(doubled(v.capacity)) }

func (v *VarBinary) resize(capacity int) {
	v.growValidity(capacity)
	v.offsets = growBuffer(v.mem, v.offsets, (capacity+1)*4)
	v.capacity = capacity
}

func (v *VarBinary) Reset() {
	v.clearValidity()
	v.offsets = freshBuffer(v.mem, v.offsets)
	v.data = freshBuffer(v.mem, v.data)
	v.lastSet = -1
}

func (v *VarBinary) ArrayData() arrow.ArrayData {
	return array.NewData(v.dtype, v.count,
		[]*memory.Buffer{v.validity, v.offsets, v.data}, nil, v.NullCount(), 0)
}

func (v *VarBinary) Release() {
	v.releaseValidity()
	for _, buf := range []*memory.Buffer{v.offsets, v.data} {
		if buf != nil {
			buf.Release()
		}
	}
	v.offsets, v.data = nil, nil
}
