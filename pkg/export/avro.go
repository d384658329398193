package export

import (
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/linkedin/goavro/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// Avro files carry the feature type in the container metadata.
const (
	avroMetaTypeName = "geovec.type_name"
	avroMetaSpec     = "geovec.spec"
	avroIDField      = "__fid"
	avroBlockSize    = 1024
)

func avroCodec(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "none", "null":
		return goavro.CompressionNullLabel, nil
	case "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	}
	return "", geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument, "unsupported Avro compression %q", name)
}

// avroPrimitive is the Avro type storing values of t. Dates are epoch
// milliseconds, UUIDs their string form and geometries WKB.
func avroPrimitive(t feature.AttributeType) string {
	switch t {
	case feature.TypeString, feature.TypeUUID:
		return "string"
	case feature.TypeInteger:
		return "int"
	case feature.TypeLong, feature.TypeDate:
		return "long"
	case feature.TypeFloat:
		return "float"
	case feature.TypeDouble:
		return "double"
	case feature.TypeBoolean:
		return "boolean"
	}
	return "bytes"
}

// avroSchema builds a record schema with a nullable field per attribute.
func avroSchema(sft *feature.SimpleFeatureType) (string, error) {
	fields := []map[string]any{{"name": avroIDField, "type": "string"}}
	for _, d := range sft.Attributes() {
		var t any = avroPrimitive(d.Type)
		if d.Type == feature.TypeList {
			t = map[string]any{"type": "array", "items": avroPrimitive(d.ElementType)}
		}
		fields = append(fields, map[string]any{
			"name":    d.Name,
			"type":    []any{"null", t},
			"default": nil,
		})
	}
	schema, err := json.Marshal(map[string]any{
		"type":      "record",
		"name":      "Feature",
		"namespace": "geovec",
		"doc":       sft.Name(),
		"fields":    fields,
	})
	return string(schema), err
}

func writeAvro(w io.Writer, sfv *sfvector.SimpleFeatureVector, opts Options) error {
	compression, err := avroCodec(opts.Compression)
	if err != nil {
		return err
	}
	sft := sfv.Type()
	schema, err := avroSchema(sft)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeInvalidArgument, "feature type has no Avro schema")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compression,
		MetaData: map[string][]byte{
			avroMetaTypeName: []byte(sft.Name()),
			avroMetaSpec:     []byte(sft.Spec()),
		},
	})
	if err != nil {
		return err
	}

	block := make([]any, 0, avroBlockSize)
	for i := 0; i < sfv.ValueCount(); i++ {
		rec, err := avroRecord(sft, sfv.Get(i))
		if err != nil {
			return err
		}
		block = append(block, rec)
		if len(block) == avroBlockSize {
			if err := ocf.Append(block); err != nil {
				return err
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		return ocf.Append(block)
	}
	return nil
}

func avroRecord(sft *feature.SimpleFeatureType, f feature.Feature) (map[string]any, error) {
	rec := make(map[string]any, sft.AttributeCount()+1)
	rec[avroIDField] = f.ID()
	for i, d := range sft.Attributes() {
		v := f.AttributeAt(i)
		if v == nil {
			rec[d.Name] = nil
			continue
		}
		if d.Type == feature.TypeList {
			items := feature.ListItems(v)
			native := make([]any, len(items))
			for k, item := range items {
				native[k] = toAvro(item)
			}
			rec[d.Name] = goavro.Union("array", native)
			continue
		}
		native := toAvro(v)
		if g, ok := v.(orb.Geometry); ok {
			b, err := wkb.Marshal(g)
			if err != nil {
				return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "cannot encode geometry").
					WithDetail("field", d.Name)
			}
			native = b
		}
		rec[d.Name] = goavro.Union(avroPrimitive(d.Type), native)
	}
	return rec, nil
}

func toAvro(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli()
	case uuid.UUID:
		return t.String()
	}
	return v
}

// ReadAvro reads an Avro object container file written by Write. Rows are
// delivered in vectors of at most cfg.Capacity rows; dictionaries are not
// preserved.
func ReadAvro(r io.Reader, cfg *sfvector.Config, fn VectorFunc) error {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot open Avro file")
	}
	md := ocf.MetaData()
	spec, ok := md[avroMetaSpec]
	if !ok {
		return geoerrors.New(geoerrors.ErrorTypeData, "Avro file has no feature type metadata")
	}
	sft, err := feature.ParseSpec(string(md[avroMetaTypeName]), string(spec))
	if err != nil {
		return err
	}

	chunk := sfvector.DefaultConfig().Capacity
	if cfg != nil && cfg.Capacity > 0 {
		chunk = cfg.Capacity
	}
	features := make([]feature.Feature, 0, chunk)
	flush := func() error {
		if len(features) == 0 {
			return nil
		}
		sfv, err := sfvector.Create(sft, nil, cfg)
		if err != nil {
			return err
		}
		defer sfv.Close()
		if err := sfv.Load(features); err != nil {
			return err
		}
		features = features[:0]
		return fn(sfv)
	}

	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot read Avro record")
		}
		f, err := featureFromAvro(sft, datum)
		if err != nil {
			return err
		}
		features = append(features, f)
		if len(features) == chunk {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := ocf.Err(); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot read Avro file")
	}
	return flush()
}

func featureFromAvro(sft *feature.SimpleFeatureType, datum any) (*feature.SimpleFeature, error) {
	rec, ok := datum.(map[string]any)
	if !ok {
		return nil, geoerrors.Newf(geoerrors.ErrorTypeData, "unexpected Avro datum %T", datum)
	}
	id, _ := rec[avroIDField].(string)
	values := make([]any, sft.AttributeCount())
	for i, d := range sft.Attributes() {
		// Non-null union values decode as a single entry map keyed by branch.
		if branch, ok := rec[d.Name].(map[string]any); ok {
			for _, v := range branch {
				values[i] = v
			}
		}
	}
	return feature.NewSimpleFeature(sft, id, values...)
}
