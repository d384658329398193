// Package sfvector binds simple features onto Arrow columnar vectors.
//
// A SimpleFeatureVector owns one struct vector holding an "id" child and one
// child per attribute, a Writer that encodes features into rows and a Reader
// that decodes rows back into lazy feature views. Construction is two-phase:
// the writer binds (or creates) the child columns first and hands the bound
// column set to the reader.
//
//	sft, _ := feature.ParseSpec("roads", "name:String,*geom:LineString")
//	sfv, _ := sfvector.Create(sft, nil, nil)
//	defer sfv.Close()
//	_ = sfv.Set(0, f)
//	sfv.SetValueCount(1)
//	rec := sfv.Record()
//
// A SimpleFeatureVector is not safe for concurrent writes. Once
// SetValueCount has been called and writes stop, concurrent reads are safe.
package sfvector

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/logger"
	"github.com/ajitpratap0/geovec/pkg/vector"
)

// SimpleFeatureVector is a columnar container of features of one type.
type SimpleFeatureVector struct {
	sft      *feature.SimpleFeatureType
	vec      *vector.Struct
	encoding Encoding
	writer   *Writer
	reader   *Reader
	log      *zap.Logger
}

// Create allocates a new struct vector named after sft with cfg.Capacity
// rows. dictionaries maps String attribute names to their value lists;
// those attributes are dictionary encoded.
func Create(sft *feature.SimpleFeatureType, dictionaries map[string][]string, cfg *Config) (*SimpleFeatureVector, error) {
	cfg = cfg.withDefaults()
	log := loggerFor(cfg)

	vec := vector.NewStruct(sft.Name(), cfg.Allocator, cfg.Capacity)
	md, err := typeMetadata(sft)
	if err != nil {
		vec.Release()
		return nil, err
	}
	vec.SetMetadata(md)

	writer, cols, err := newWriter(vec, sft, cfg.Encoding, dictionaries, true, log)
	if err != nil {
		vec.Release()
		return nil, err
	}
	log.Debug("created feature vector",
		zap.String("type_name", sft.Name()),
		zap.Int("capacity", vec.Capacity()),
		zap.Stringer("encoding", cfg.Encoding))
	return &SimpleFeatureVector{
		sft:      sft,
		vec:      vec,
		encoding: cfg.Encoding,
		writer:   writer,
		reader:   newReader(cols),
		log:      log,
	}, nil
}

// Wrap binds over an existing struct vector without copying. The feature
// type is derived from the children other than "id", in order; the geometry
// precision is inferred from the default geometry field, or Double when there
// is none. On success the SimpleFeatureVector owns vec.
//
// A supplied dictionary must match the values of a dictionary encoded
// column; columns that are not dictionary encoded ignore it.
func Wrap(vec *vector.Struct, dictionaries map[string][]string, cfg *Config) (*SimpleFeatureVector, error) {
	cfg = cfg.withDefaults()
	log := loggerFor(cfg)

	sft, err := deriveType(vec)
	if err != nil {
		return nil, err
	}

	enc := Encoding{Precision: Double}
	if gd, ok := sft.GeometryDescriptor(); ok && gd.Type != feature.TypeGeometry {
		enc.Precision, err = InferPrecision(vec.Child(gd.Name).Field())
		if err != nil {
			return nil, err
		}
	}
	if enc.FIDs, err = fidEncodingOf(vec); err != nil {
		return nil, err
	}

	writer, cols, err := newWriter(vec, sft, enc, dictionaries, false, log)
	if err != nil {
		return nil, err
	}
	log.Debug("wrapped feature vector",
		zap.String("type_name", sft.Name()),
		zap.Int("rows", vec.ValueCount()),
		zap.Stringer("encoding", enc))
	return &SimpleFeatureVector{
		sft:      sft,
		vec:      vec,
		encoding: enc,
		writer:   writer,
		reader:   newReader(cols),
		log:      log,
	}, nil
}

// WrapRecord binds over the columns of a record batch, as written by Record.
// The record can be released by the caller afterwards.
func WrapRecord(rec arrow.Record, dictionaries map[string][]string, cfg *Config) (*SimpleFeatureVector, error) {
	cfg = cfg.withDefaults()
	name, _ := rec.Schema().Metadata().GetValue(MetadataTypeName)
	vec, err := vector.StructFromRecord(name, rec, cfg.Allocator)
	if err != nil {
		return nil, err
	}
	sfv, err := Wrap(vec, dictionaries, cfg)
	if err != nil {
		vec.Release()
		return nil, err
	}
	return sfv, nil
}

func loggerFor(cfg *Config) *zap.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logger.Named("sfvector")
}

// Type returns the feature type.
func (v *SimpleFeatureVector) Type() *feature.SimpleFeatureType { return v.sft }

// Encoding returns the id encoding and geometry precision.
func (v *SimpleFeatureVector) Encoding() Encoding { return v.encoding }

// Dictionaries returns the value lists of dictionary encoded attributes.
func (v *SimpleFeatureVector) Dictionaries() map[string][]string {
	out := make(map[string][]string, len(v.reader.cols.dictionaries))
	for k, values := range v.reader.cols.dictionaries {
		out[k] = values
	}
	return out
}

// Vector returns the underlying struct vector.
func (v *SimpleFeatureVector) Vector() *vector.Struct { return v.vec }

// Writer returns the row writer.
func (v *SimpleFeatureVector) Writer() *Writer { return v.writer }

// Reader returns the row reader.
func (v *SimpleFeatureVector) Reader() *Reader { return v.reader }

// Set writes f at row index, growing the vector as needed.
func (v *SimpleFeatureVector) Set(index int, f feature.Feature) error {
	return v.writer.Set(index, f)
}

// SetValueCount finalizes the number of valid rows.
func (v *SimpleFeatureVector) SetValueCount(n int) { v.writer.SetValueCount(n) }

// Get returns a lazy view of row index.
func (v *SimpleFeatureVector) Get(index int) feature.Feature { return v.reader.Get(index) }

// ValueCount returns the number of valid rows.
func (v *SimpleFeatureVector) ValueCount() int { return v.reader.ValueCount() }

// Capacity returns the allocated row capacity.
func (v *SimpleFeatureVector) Capacity() int { return v.vec.Capacity() }

// MaxIndex returns the last row addressable without growing.
func (v *SimpleFeatureVector) MaxIndex() int { return v.writer.MaxIndex() }

// Expand doubles the capacity.
func (v *SimpleFeatureVector) Expand() { v.writer.expand() }

// Reset sets the value count to zero and clears all rows, keeping the
// capacity. Records exported before the reset are not modified.
func (v *SimpleFeatureVector) Reset() { v.vec.Reset() }

// Load writes features at consecutive rows after the current value count
// and finalizes them.
func (v *SimpleFeatureVector) Load(features []feature.Feature) error {
	start := v.ValueCount()
	for i, f := range features {
		if err := v.Set(start+i, f); err != nil {
			return err
		}
	}
	v.SetValueCount(start + len(features))
	return nil
}

// Schema returns the Arrow schema of Record.
func (v *SimpleFeatureVector) Schema() *arrow.Schema { return v.vec.Schema() }

// Record exports the valid rows as a record batch without copying. The
// caller must release it.
func (v *SimpleFeatureVector) Record() arrow.Record { return v.vec.Record() }

// Array exports the valid rows as a struct array without copying. The caller
// must release it.
func (v *SimpleFeatureVector) Array() arrow.Array {
	data := v.vec.ArrayData()
	defer data.Release()
	return array.MakeFromData(data)
}

// Close releases the vector and then the writer.
func (v *SimpleFeatureVector) Close() error {
	if v.vec == nil {
		return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "feature vector already closed")
	}
	v.vec.Release()
	v.vec = nil
	v.writer.close()
	return nil
}
