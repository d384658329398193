package sfvector

import (
	"strconv"

	"github.com/paulmach/orb"

	"github.com/ajitpratap0/geovec/pkg/feature"
)

// Reader decodes rows of a struct vector into lazy feature views.
type Reader struct {
	cols *Columns
}

// newReader builds a reader over the columns bound by a Writer.
func newReader(cols *Columns) *Reader {
	return &Reader{cols: cols}
}

// Get returns a view of row index. Attribute values are decoded on each
// access; index must be below ValueCount.
func (r *Reader) Get(index int) feature.Feature {
	return &featureView{cols: r.cols, row: index}
}

// ValueCount returns the number of finalized rows.
func (r *Reader) ValueCount() int { return r.cols.vec.ValueCount() }

type featureView struct {
	cols *Columns
	row  int
}

func (f *featureView) ID() string {
	if f.cols.fid == nil {
		return strconv.Itoa(f.row)
	}
	if id, ok := f.cols.fid.get(f.row).(string); ok {
		return id
	}
	return ""
}

func (f *featureView) Type() *feature.SimpleFeatureType { return f.cols.sft }

func (f *featureView) Attribute(name string) any {
	if i := f.cols.sft.IndexOf(name); i >= 0 {
		return f.AttributeAt(i)
	}
	return nil
}

func (f *featureView) AttributeAt(i int) any { return f.cols.attrs[i].get(f.row) }

func (f *featureView) Attributes() []any {
	out := make([]any, len(f.cols.attrs))
	for i := range out {
		out[i] = f.AttributeAt(i)
	}
	return out
}

func (f *featureView) DefaultGeometry() orb.Geometry {
	if i := f.cols.sft.GeometryIndex(); i >= 0 {
		if g, ok := f.AttributeAt(i).(orb.Geometry); ok {
			return g
		}
	}
	return nil
}

// UserData is always empty; feature level user data is not stored in
// vectors.
func (f *featureView) UserData() map[string]string { return map[string]string{} }
