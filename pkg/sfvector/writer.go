package sfvector

import (
	"errors"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/metrics"
	"github.com/ajitpratap0/geovec/pkg/vector"
)

// Columns is the set of columns a Writer bound on a struct vector. It is the
// only input a Reader can be built from, so a reader never observes a vector
// whose children have not been created.
type Columns struct {
	sft          *feature.SimpleFeatureType
	vec          *vector.Struct
	encoding     Encoding
	dictionaries map[string][]string
	fid          *fidColumn
	attrs        []column
}

// Writer writes features into rows of a struct vector.
type Writer struct {
	cols     *Columns
	maxIndex int
	log      *zap.Logger
}

// newWriter binds one column per attribute plus the id column. With create
// set the children are allocated and added to vec; otherwise existing
// children are bound by name.
func newWriter(vec *vector.Struct, sft *feature.SimpleFeatureType, enc Encoding,
	dicts map[string][]string, create bool, log *zap.Logger) (*Writer, *Columns, error) {

	if err := checkDictionaries(sft, dicts); err != nil {
		return nil, nil, err
	}
	cols := &Columns{
		sft:          sft,
		vec:          vec,
		encoding:     enc,
		dictionaries: map[string][]string{},
		attrs:        make([]column, sft.AttributeCount()),
	}

	if create {
		if err := createChildren(vec, sft, enc, dicts); err != nil {
			return nil, nil, err
		}
	}

	if enc.FIDs != FIDNone {
		idVec := vec.Child(feature.IDField)
		if idVec == nil {
			return nil, nil, geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "missing id column").
				WithDetail("field", feature.IDField)
		}
		fid, err := newFIDColumn(enc.FIDs, idVec)
		if err != nil {
			return nil, nil, err
		}
		cols.fid = fid
	}

	for i, d := range sft.Attributes() {
		child := vec.Child(d.Name)
		if child == nil {
			return nil, nil, geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "missing attribute column").
				WithDetail("field", d.Name)
		}
		c, err := bindColumn(d, child, log)
		if err != nil {
			return nil, nil, err
		}
		if dc, ok := c.(*dictColumn); ok {
			values := dc.v.Values()
			if want, ok := dicts[d.Name]; ok && !slices.Equal(want, values) {
				return nil, nil, geoerrors.New(geoerrors.ErrorTypeInvalidArgument,
					"dictionary does not match the encoded column").WithDetail("field", d.Name)
			}
			cols.dictionaries[d.Name] = values
		}
		cols.attrs[i] = c
	}

	w := &Writer{cols: cols, maxIndex: vec.Capacity() - 1, log: log}
	return w, cols, nil
}

func checkDictionaries(sft *feature.SimpleFeatureType, dicts map[string][]string) error {
	for name := range dicts {
		i := sft.IndexOf(name)
		if i < 0 {
			return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "dictionary for unknown attribute").
				WithDetail("field", name)
		}
		if sft.Attribute(i).Type != feature.TypeString {
			return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "dictionaries apply to String attributes").
				WithDetail("field", name)
		}
	}
	return nil
}

func createChildren(vec *vector.Struct, sft *feature.SimpleFeatureType, enc Encoding, dicts map[string][]string) error {
	mem, capacity := vec.Allocator(), vec.Capacity()
	switch enc.FIDs {
	case FIDFull:
		if err := vec.AddChild(vector.NewString(feature.IDField, mem, capacity)); err != nil {
			return err
		}
	case FIDHashed:
		if err := vec.AddChild(vector.NewInt32(feature.IDField, mem, capacity)); err != nil {
			return err
		}
	}
	for i, d := range sft.Attributes() {
		child := newAttributeVector(d, enc.Precision, dicts[d.Name], mem, capacity)
		if md, ok := child.(vector.Metadata); ok {
			md.SetMetadata(descriptorMetadata(d, i == sft.GeometryIndex()))
		}
		if err := vec.AddChild(child); err != nil {
			child.Release()
			return err
		}
	}
	return nil
}

// fidEncodingOf derives the id encoding from the id child's Arrow type.
func fidEncodingOf(vec *vector.Struct) (FIDEncoding, error) {
	child := vec.Child(feature.IDField)
	if child == nil {
		return FIDNone, nil
	}
	switch child.DataType().ID() {
	case arrow.STRING:
		return FIDFull, nil
	case arrow.INT32:
		return FIDHashed, nil
	}
	return FIDNone, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
		"unsupported id column type %s", child.DataType()).WithDetail("field", feature.IDField)
}

// Set writes f at row index, doubling the capacity while index is past the
// last addressable row. Every attribute is converted before any column is
// written, so a value that cannot be converted leaves the row untouched.
func (w *Writer) Set(index int, f feature.Feature) error {
	sft := w.cols.sft
	sameType := f.Type() == sft
	values := make([]any, len(w.cols.attrs))
	for i := range w.cols.attrs {
		d := sft.Attribute(i)
		var raw any
		if sameType {
			raw = f.AttributeAt(i)
		} else {
			raw = f.Attribute(d.Name)
		}
		value, err := feature.ConvertValue(raw, d)
		if err != nil {
			return err
		}
		values[i] = value
	}

	for index > w.maxIndex {
		w.expand()
	}

	if w.cols.fid != nil {
		if err := w.write(w.cols.fid, feature.IDField, index, f.ID()); err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot write feature id").
				WithDetail("field", feature.IDField)
		}
	}
	for i, col := range w.cols.attrs {
		name := sft.Attribute(i).Name
		if err := w.write(col, name, index, values[i]); err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot write attribute").
				WithDetail("field", name).
				WithDetail("row", index)
		}
	}
	metrics.VectorRowsWritten.WithLabelValues(sft.Name()).Inc()
	return nil
}

// write sets one column value. Variable-width columns only append, so a row
// at or before the column's last written row rewinds the column to index and
// replays the rows after it.
func (w *Writer) write(col column, name string, index int, value any) error {
	err := col.set(index, value)
	if !errors.Is(err, vector.ErrOutOfOrder) {
		return err
	}
	t, ok := col.vector().(vector.Truncater)
	if !ok {
		return err
	}

	last := t.LastSet()
	tail := make([]any, 0, last-index)
	for j := index + 1; j <= last; j++ {
		if col.vector().IsNull(j) {
			tail = append(tail, nil)
		} else {
			tail = append(tail, col.get(j))
		}
	}
	t.Truncate(index)
	if err := col.set(index, value); err != nil {
		return err
	}
	for k, v := range tail {
		if err := col.set(index+1+k, v); err != nil {
			return err
		}
	}

	metrics.VectorReplays.WithLabelValues(w.cols.sft.Name(), name).Inc()
	w.log.Debug("replayed variable-width column",
		zap.String("field", name),
		zap.Int("row", index),
		zap.Int("replayed", len(tail)))
	return nil
}

// SetValueCount finalizes n rows on the id column and every attribute
// column.
func (w *Writer) SetValueCount(n int) {
	w.cols.vec.SetValueCount(n)
}

// MaxIndex returns the last row addressable without growing.
func (w *Writer) MaxIndex() int { return w.maxIndex }

func (w *Writer) expand() {
	w.cols.vec.Reallocate()
	w.maxIndex = w.cols.vec.Capacity() - 1
	metrics.VectorGrowths.WithLabelValues(w.cols.sft.Name()).Inc()
}

func (w *Writer) close() {
	w.cols = nil
}
