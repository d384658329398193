package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// FromArrayData binds a vector over existing Arrow data without copying the
// value buffers. The vector retains the buffers it uses; data can be released
// by the caller afterwards. Data with a non-zero offset is compacted into new
// buffers first. Missing validity bitmaps are materialized as all-valid.
//
// Writes to the returned vector are visible through data until the vector
// grows.
func FromArrayData(field arrow.Field, data arrow.ArrayData, mem memory.Allocator) (Vector, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if data.Offset() != 0 {
		compacted, err := compact(data, mem)
		if err != nil {
			return nil, err
		}
		defer compacted.Release()
		data = compacted
	}

	v, err := bind(field, data, mem)
	if err != nil {
		return nil, err
	}
	if md, ok := v.(Metadata); ok {
		md.SetMetadata(field.Metadata)
	}
	return v, nil
}

// StructFromArray binds a Struct over a struct array.
func StructFromArray(name string, arr arrow.Array, mem memory.Allocator) (*Struct, error) {
	if arr.DataType().ID() != arrow.STRUCT {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
			"expected a struct array, got %s", arr.DataType())
	}
	v, err := FromArrayData(arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}, arr.Data(), mem)
	if err != nil {
		return nil, err
	}
	return v.(*Struct), nil
}

// StructFromRecord binds a Struct over the columns of rec. The schema
// metadata becomes the struct's metadata.
func StructFromRecord(name string, rec arrow.Record, mem memory.Allocator) (*Struct, error) {
	arr := array.RecordToStructArray(rec)
	defer arr.Release()
	v, err := StructFromArray(name, arr, mem)
	if err != nil {
		return nil, err
	}
	v.SetMetadata(rec.Schema().Metadata())
	return v, nil
}

func compact(data arrow.ArrayData, mem memory.Allocator) (arrow.ArrayData, error) {
	arr := array.MakeFromData(data)
	defer arr.Release()
	out, err := array.Concatenate([]arrow.Array{arr}, mem)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeInternal, "cannot compact sliced array")
	}
	defer out.Release()
	d := out.Data()
	d.Retain()
	return d, nil
}

func bind(field arrow.Field, data arrow.ArrayData, mem memory.Allocator) (Vector, error) {
	n := data.Len()
	b := base{name: field.Name, mem: mem, capacity: n, count: n}
	b.validity = validityOf(data, mem)
	buffers := data.Buffers()

	switch data.DataType().ID() {
	case arrow.INT8:
		return bindFixed[int8](b, data, mem), nil
	case arrow.INT16:
		return bindFixed[int16](b, data, mem), nil
	case arrow.INT32:
		return bindFixed[int32](b, data, mem), nil
	case arrow.INT64:
		return bindFixed[int64](b, data, mem), nil
	case arrow.FLOAT32:
		return bindFixed[float32](b, data, mem), nil
	case arrow.FLOAT64:
		return bindFixed[float64](b, data, mem), nil
	case arrow.TIMESTAMP:
		return bindFixed[arrow.Timestamp](b, data, mem), nil
	case arrow.BOOL:
		return &Bool{base: b, data: retainedBuffer(mem, buffers[1], bitmapBytes(n))}, nil
	case arrow.FIXED_SIZE_BINARY:
		width := data.DataType().(*arrow.FixedSizeBinaryType).ByteWidth
		return &FixedSizeBinary{base: b, byteWidth: width,
			data: retainedBuffer(mem, buffers[1], n*width)}, nil
	case arrow.STRING, arrow.BINARY:
		v := &VarBinary{base: b, dtype: data.DataType(), lastSet: n - 1,
			offsets: retainedBuffer(mem, buffers[1], (n+1)*4)}
		v.data = retainedBuffer(mem, buffers[2], int(v.offsetValues()[n]))
		return v, nil
	case arrow.LIST:
		elem := data.DataType().(*arrow.ListType).ElemField()
		child, err := FromArrayData(elem, data.Children()[0], mem)
		if err != nil {
			b.releaseValidity()
			return nil, err
		}
		return &List{base: b, child: child, lastSet: n - 1,
			offsets: retainedBuffer(mem, buffers[1], (n+1)*4)}, nil
	case arrow.FIXED_SIZE_LIST:
		dt := data.DataType().(*arrow.FixedSizeListType)
		child, err := FromArrayData(dt.ElemField(), data.Children()[0], mem)
		if err != nil {
			b.releaseValidity()
			return nil, err
		}
		return &FixedSizeList{base: b, size: int(dt.Len()), child: child}, nil
	case arrow.STRUCT:
		dt := data.DataType().(*arrow.StructType)
		v := &Struct{base: b, index: make(map[string]int)}
		for i, f := range dt.Fields() {
			child, err := FromArrayData(f, data.Children()[i], mem)
			if err == nil {
				err = v.AddChild(child)
			}
			if err != nil {
				v.Release()
				return nil, err
			}
		}
		return v, nil
	case arrow.DICTIONARY:
		return bindDictionary(b, data, mem)
	}
	b.releaseValidity()
	return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument, "unsupported arrow type %s", data.DataType()).
		WithDetail("field", field.Name)
}

func bindFixed[T Numeric](b base, data arrow.ArrayData, mem memory.Allocator) *FixedWidth[T] {
	v := &FixedWidth[T]{base: b, dtype: data.DataType()}
	v.data = retainedBuffer(mem, data.Buffers()[1], b.capacity*v.width())
	return v
}

func bindDictionary(b base, data arrow.ArrayData, mem memory.Allocator) (Vector, error) {
	dt := data.DataType().(*arrow.DictionaryType)
	if dt.ValueType.ID() != arrow.STRING {
		b.releaseValidity()
		return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
			"unsupported dictionary value type %s", dt.ValueType).WithDetail("field", b.name)
	}
	dict := data.Dictionary()
	if dict.Offset() != 0 {
		compacted, err := compact(dict, mem)
		if err != nil {
			b.releaseValidity()
			return nil, err
		}
		defer compacted.Release()
		dict = compacted
	}
	arr := array.NewStringData(dict)
	values := make([]string, arr.Len())
	for i := range values {
		values[i] = arr.Value(i)
	}
	arr.Release()

	var indices indexVector
	switch dt.IndexType.ID() {
	case arrow.INT8:
		indices = dictIndices[int8]{bindFixed[int8](b, data, mem)}
	case arrow.INT16:
		indices = dictIndices[int16]{bindFixed[int16](b, data, mem)}
	case arrow.INT32:
		indices = dictIndices[int32]{bindFixed[int32](b, data, mem)}
	default:
		b.releaseValidity()
		return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
			"unsupported dictionary index type %s", dt.IndexType).WithDetail("field", b.name)
	}
	dict.Retain()
	return newDictionary(indices, values, dict), nil
}

// validityOf retains the validity bitmap of data, materializing an all-valid
// bitmap when the data has none.
func validityOf(data arrow.ArrayData, mem memory.Allocator) *memory.Buffer {
	n := data.Len()
	buffers := data.Buffers()
	if len(buffers) > 0 && buffers[0] != nil && data.NullN() > 0 {
		return retainedBuffer(mem, buffers[0], bitmapBytes(n))
	}
	buf := newBuffer(mem, bitmapBytes(n))
	bitutil.SetBitsTo(buf.Bytes(), 0, int64(n), true)
	return buf
}
