package sfvector

import (
	"strconv"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/vector"
)

const allTypesSpec = "name:String,count:Integer,big:Long,score:Float,ratio:Double,ok:Boolean," +
	"dtg:Date,uid:UUID,raw:Bytes,tags:List[String],nums:List[Integer]," +
	"line:LineString,poly:Polygon,mpt:MultiPoint,mline:MultiLineString,mpoly:MultiPolygon," +
	"any:Geometry,*geom:Point:srid=4326;geovec.index.dtg=dtg"

func testConfig(t *testing.T, capacity int) (*Config, *memory.CheckedAllocator) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	cfg := DefaultConfig()
	cfg.Capacity = capacity
	cfg.Allocator = mem
	cfg.Logger = zaptest.NewLogger(t)
	return cfg, mem
}

func square(x, y float64) orb.Ring {
	return orb.Ring{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}
}

func allTypesFeatures(t *testing.T, sft *feature.SimpleFeatureType) []*feature.SimpleFeature {
	full := feature.MustNewSimpleFeature(sft, "f1",
		"main street",
		int32(2),
		int64(1)<<40,
		float32(1.5),
		2.25,
		true,
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		[]byte{0, 1, 2},
		[]string{"a", "bb", ""},
		[]int32{3, 1, 2},
		orb.LineString{{0, 0}, {1, 1}, {2, 0}},
		orb.Polygon{square(0, 0), square(0.25, 0.25)},
		orb.MultiPoint{{5, 5}, {6, 6}},
		orb.MultiLineString{{{0, 0}, {1, 0}}, {{2, 2}, {3, 3}, {4, 4}}},
		orb.MultiPolygon{{square(10, 10)}, {square(20, 20), square(20.5, 20.5)}},
		orb.LineString{{7, 7}, {8, 8}},
		orb.Point{-122.5, 37.75},
	)
	sparse := feature.MustNewSimpleFeature(sft, "f2")
	require.NoError(t, sparse.SetAttribute("geom", orb.Point{1, 2}))
	empty := feature.MustNewSimpleFeature(sft, "f3", "", int32(0))
	require.NoError(t, empty.SetAttribute("tags", []string{}))
	return []*feature.SimpleFeature{full, sparse, empty}
}

func assertFeatureEqual(t *testing.T, want feature.Feature, got feature.Feature) {
	t.Helper()
	assert.Equal(t, want.ID(), got.ID())
	sft := want.Type()
	for i := 0; i < sft.AttributeCount(); i++ {
		assert.Equal(t, want.AttributeAt(i), got.AttributeAt(i), sft.Attribute(i).Name)
	}
}

func TestRoundTripAllTypes(t *testing.T) {
	sft, err := feature.ParseSpec("everything", allTypesSpec)
	require.NoError(t, err)
	cfg, _ := testConfig(t, 2)

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	defer sfv.Close()

	features := allTypesFeatures(t, sft)
	for i, f := range features {
		require.NoError(t, sfv.Set(i, f))
	}
	sfv.SetValueCount(len(features))

	require.Equal(t, len(features), sfv.ValueCount())
	for i, f := range features {
		got := sfv.Get(i)
		assertFeatureEqual(t, f, got)
		assert.Equal(t, f.DefaultGeometry(), got.DefaultGeometry())
		assert.Same(t, sft, got.Type())
		assert.Empty(t, got.UserData())
	}
	assert.Equal(t, "main street", sfv.Get(0).Attribute("name"))
	assert.Nil(t, sfv.Get(0).Attribute("missing"))
}

func TestSetOutOfOrderReplaysColumns(t *testing.T) {
	sft, err := feature.ParseSpec("roads", "name:String,lanes:Integer,*geom:LineString")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 4)

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	defer sfv.Close()

	features := make([]*feature.SimpleFeature, 4)
	for i := range features {
		features[i] = feature.MustNewSimpleFeature(sft, "road-"+strconv.Itoa(i),
			"name "+strconv.Itoa(i), i,
			orb.LineString{{float64(i), 0}, {float64(i), 1}})
	}
	for _, i := range []int{3, 1, 0, 2, 1} {
		require.NoError(t, sfv.Set(i, features[i]))
	}
	sfv.SetValueCount(4)

	for i, f := range features {
		assertFeatureEqual(t, f, sfv.Get(i))
	}
}

func TestSetLeavesRowUntouchedOnConversionError(t *testing.T) {
	sft, err := feature.ParseSpec("roads", "name:String,lanes:Integer")
	require.NoError(t, err)
	loose, err := feature.ParseSpec("roads", "name:String,lanes:String")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 4)

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	defer sfv.Close()

	good := feature.MustNewSimpleFeature(sft, "r0", "main", int32(2))
	require.NoError(t, sfv.Set(0, good))

	bad := feature.MustNewSimpleFeature(loose, "r1", "elm", "many")
	err = sfv.Set(1, bad)
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeData))

	ids := sfv.Vector().Child(feature.IDField).(vector.Truncater)
	names := sfv.Vector().Child("name").(vector.Truncater)
	assert.Equal(t, 0, ids.LastSet())
	assert.Equal(t, 0, names.LastSet())

	fixed := feature.MustNewSimpleFeature(loose, "r1", "elm", "3")
	require.NoError(t, sfv.Set(1, fixed))
	sfv.SetValueCount(2)
	assertFeatureEqual(t, good, sfv.Get(0))
	assert.Equal(t, "r1", sfv.Get(1).ID())
	assert.Equal(t, int32(3), sfv.Get(1).Attribute("lanes"))
}

func TestExpandGrowsAndKeepsRows(t *testing.T) {
	sft, err := feature.ParseSpec("pts", "name:String,*geom:Point")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 2)

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	defer sfv.Close()

	a := feature.MustNewSimpleFeature(sft, "a", "first", orb.Point{1, 1})
	b := feature.MustNewSimpleFeature(sft, "b", "second", orb.Point{2, 2})
	require.NoError(t, sfv.Set(0, a))
	require.NoError(t, sfv.Set(1, b))

	before := sfv.MaxIndex()
	assert.Equal(t, 1, before)
	sfv.Expand()
	assert.Equal(t, 4, sfv.Capacity())
	assert.Equal(t, 3, sfv.MaxIndex())
	sfv.Expand()
	assert.Equal(t, 8, sfv.Capacity())
	assert.Equal(t, 7, sfv.MaxIndex())

	c := feature.MustNewSimpleFeature(sft, "c", "far", orb.Point{3, 3})
	require.NoError(t, sfv.Set(100, c))
	assert.GreaterOrEqual(t, sfv.MaxIndex(), 100)
	sfv.SetValueCount(101)

	assertFeatureEqual(t, a, sfv.Get(0))
	assertFeatureEqual(t, b, sfv.Get(1))
	assertFeatureEqual(t, c, sfv.Get(100))
	assert.Nil(t, sfv.Get(50).Attribute("name"))
}

func TestResetKeepsCapacity(t *testing.T) {
	sft, err := feature.ParseSpec("pts", "name:String,*geom:Point")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 8)

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	defer sfv.Close()

	f := feature.MustNewSimpleFeature(sft, "a", "x", orb.Point{1, 1})
	require.NoError(t, sfv.Load([]feature.Feature{f, f, f}))
	assert.Equal(t, 3, sfv.ValueCount())
	capacity := sfv.Capacity()

	sfv.Reset()
	assert.Equal(t, 0, sfv.ValueCount())
	assert.Equal(t, capacity, sfv.Capacity())
	sfv.Reset()
	assert.Equal(t, 0, sfv.ValueCount())

	g := feature.MustNewSimpleFeature(sft, "b", "y", orb.Point{2, 2})
	require.NoError(t, sfv.Load([]feature.Feature{g}))
	assertFeatureEqual(t, g, sfv.Get(0))
}

func TestInferPrecision(t *testing.T) {
	point32 := arrow.FixedSizeListOfField(2, arrow.Field{Name: "xy", Type: arrow.PrimitiveTypes.Float32})
	point64 := arrow.FixedSizeListOfField(2, arrow.Field{Name: "xy", Type: arrow.PrimitiveTypes.Float64})

	cases := []struct {
		name string
		typ  arrow.DataType
		want Precision
	}{
		{"float leaf", arrow.PrimitiveTypes.Float32, Float},
		{"double leaf", arrow.PrimitiveTypes.Float64, Double},
		{"point float", point32, Float},
		{"point double", point64, Double},
		{"linestring", arrow.ListOfField(arrow.Field{Name: "vertices", Type: point32}), Float},
		{"multipolygon", arrow.ListOf(arrow.ListOf(arrow.ListOf(point64))), Double},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := InferPrecision(arrow.Field{Name: "geom", Type: tc.typ})
			require.NoError(t, err)
			assert.Equal(t, tc.want, p)
		})
	}

	_, err := InferPrecision(arrow.Field{Name: "geom", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)})
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))
	assert.Contains(t, err.Error(), "geom")
}

func TestFloatPointExample(t *testing.T) {
	sft, err := feature.ParseSpec("example", "name:String,*geom:Point")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 0)
	cfg.Encoding.Precision = Float

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	defer sfv.Close()

	require.NoError(t, sfv.Set(0, feature.MustNewSimpleFeature(sft, "f1", "a", orb.Point{1.0, 2.0})))
	sfv.SetValueCount(1)

	f := sfv.Get(0)
	assert.Equal(t, "f1", f.ID())
	assert.Equal(t, orb.Point{1.0, 2.0}, f.Attribute("geom"))

	schema := sfv.Schema()
	geomType := schema.Field(schema.FieldIndices("geom")[0]).Type.(*arrow.FixedSizeListType)
	assert.Equal(t, arrow.FLOAT32, geomType.Elem().ID())
}

func TestWrapRecordDerivesSchema(t *testing.T) {
	sft, err := feature.ParseSpec("roads", "name:String:index=true,lanes:Integer,*geom:LineString;owner=city")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 4)
	cfg.Encoding.Precision = Float

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	f := feature.MustNewSimpleFeature(sft, "r1", "main", 2, orb.LineString{{0, 0}, {1, 1}})
	require.NoError(t, sfv.Load([]feature.Feature{f}))

	rec := sfv.Record()
	require.NoError(t, sfv.Close())

	wrapped, err := WrapRecord(rec, nil, cfg)
	rec.Release()
	require.NoError(t, err)
	defer wrapped.Close()

	derived := wrapped.Type()
	assert.Equal(t, "roads", derived.Name())
	assert.Equal(t, sft.Spec(), derived.Spec())
	assert.Equal(t, Float, wrapped.Encoding().Precision)
	assert.Equal(t, FIDFull, wrapped.Encoding().FIDs)
	require.Equal(t, 1, wrapped.ValueCount())
	assertFeatureEqual(t, f, wrapped.Get(0))

	g := feature.MustNewSimpleFeature(derived, "r2", "side", 1, orb.LineString{{2, 2}, {3, 3}})
	require.NoError(t, wrapped.Set(1, g))
	wrapped.SetValueCount(2)
	assertFeatureEqual(t, g, wrapped.Get(1))
}

func TestWrapInfersPlainArrowTypes(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "speed", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "geom", Type: arrow.FixedSizeListOfField(2, arrow.Field{Name: "xy", Type: arrow.PrimitiveTypes.Float32}), Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"a", "b"}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{1, 2}, nil)
	pts := b.Field(2).(*array.FixedSizeListBuilder)
	xy := pts.ValueBuilder().(*array.Float32Builder)
	pts.Append(true)
	xy.AppendValues([]float32{1, 2}, nil)
	pts.Append(true)
	xy.AppendValues([]float32{3, 4}, nil)
	rec := b.NewRecord()
	b.Release()

	cfg := &Config{Allocator: mem, Logger: zaptest.NewLogger(t)}
	sfv, err := WrapRecord(rec, nil, cfg)
	rec.Release()
	require.NoError(t, err)
	defer sfv.Close()

	sft := sfv.Type()
	names := make([]string, 0, sft.AttributeCount())
	for _, d := range sft.Attributes() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"name", "speed", "geom"}, names)
	assert.Equal(t, feature.TypePoint, sft.Attribute(2).Type)
	assert.Equal(t, 2, sft.GeometryIndex())
	assert.Equal(t, Float, sfv.Encoding().Precision)
	assert.Equal(t, FIDNone, sfv.Encoding().FIDs)

	got := sfv.Get(1)
	assert.Equal(t, "1", got.ID())
	assert.Equal(t, "b", got.Attribute("name"))
	assert.Equal(t, orb.Point{3, 4}, got.DefaultGeometry())
}

func TestWrapRejectsNonFloatGeometry(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	md := arrow.NewMetadata([]string{MetadataDescriptor}, []string{"*geom:Point"})
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "geom", Type: arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Int32), Nullable: true, Metadata: md},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	rec := b.NewRecord()
	b.Release()
	defer rec.Release()

	_, err := WrapRecord(rec, nil, &Config{Allocator: mem, Logger: zaptest.NewLogger(t)})
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))
	assert.Contains(t, err.Error(), "geom")
}

func TestDictionaryEncodedAttributes(t *testing.T) {
	sft, err := feature.ParseSpec("roads", "kind:String,name:String,*geom:Point")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 4)
	dicts := map[string][]string{"kind": {"highway", "residential"}}

	sfv, err := Create(sft, dicts, cfg)
	require.NoError(t, err)
	require.NoError(t, sfv.Load([]feature.Feature{
		feature.MustNewSimpleFeature(sft, "a", "residential", "elm", orb.Point{1, 1}),
		feature.MustNewSimpleFeature(sft, "b", "footpath", "oak", orb.Point{2, 2}),
	}))

	assert.Equal(t, "residential", sfv.Get(0).Attribute("kind"))
	assert.Nil(t, sfv.Get(1).Attribute("kind"))
	assert.Equal(t, "oak", sfv.Get(1).Attribute("name"))

	kind := sfv.Schema().Field(1)
	require.Equal(t, "kind", kind.Name)
	assert.Equal(t, arrow.DICTIONARY, kind.Type.ID())

	rec := sfv.Record()
	require.NoError(t, sfv.Close())
	defer rec.Release()

	_, err = WrapRecord(rec, map[string][]string{"kind": {"other"}}, cfg)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))

	wrapped, err := WrapRecord(rec, nil, cfg)
	require.NoError(t, err)
	defer wrapped.Close()
	assert.Equal(t, dicts, wrapped.Dictionaries())
	assert.Equal(t, "residential", wrapped.Get(0).Attribute("kind"))
}

func TestDictionariesMustTargetStrings(t *testing.T) {
	sft, err := feature.ParseSpec("t", "n:Integer,*geom:Point")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 4)

	_, err = Create(sft, map[string][]string{"n": {"1"}}, cfg)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))
	_, err = Create(sft, map[string][]string{"missing": {"1"}}, cfg)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))
}

func TestFIDEncodings(t *testing.T) {
	sft, err := feature.ParseSpec("t", "name:String")
	require.NoError(t, err)

	for _, enc := range []FIDEncoding{FIDHashed, FIDNone} {
		t.Run(enc.String(), func(t *testing.T) {
			cfg, _ := testConfig(t, 4)
			cfg.Encoding.FIDs = enc
			sfv, err := Create(sft, nil, cfg)
			require.NoError(t, err)
			defer sfv.Close()

			require.NoError(t, sfv.Load([]feature.Feature{feature.MustNewSimpleFeature(sft, "feature-1", "x")}))
			got := sfv.Get(0)
			assert.Equal(t, "x", got.Attribute("name"))
			if enc == FIDHashed {
				assert.Equal(t, strconv.Itoa(int(HashFID("feature-1"))), got.ID())
				assert.NotNil(t, sfv.Vector().Child(feature.IDField))
			} else {
				assert.Equal(t, "0", got.ID())
				assert.Nil(t, sfv.Vector().Child(feature.IDField))
			}
		})
	}
}

func TestArrayExport(t *testing.T) {
	sft, err := feature.ParseSpec("t", "name:String,tags:List[Long],*geom:Polygon")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 2)

	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	defer sfv.Close()
	require.NoError(t, sfv.Load([]feature.Feature{
		feature.MustNewSimpleFeature(sft, "a", "x", []int64{1, 2}, orb.Polygon{square(0, 0)}),
	}))

	arr := sfv.Array()
	defer arr.Release()
	st := arr.(*array.Struct)
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, 4, st.NumField())
	rings := st.Field(3).(*array.List)
	assert.Equal(t, "rings", rings.DataType().(*arrow.ListType).ElemField().Name)
}

func TestCloseTwice(t *testing.T) {
	sft, err := feature.ParseSpec("t", "name:String")
	require.NoError(t, err)
	cfg, _ := testConfig(t, 1)
	sfv, err := Create(sft, nil, cfg)
	require.NoError(t, err)
	require.NoError(t, sfv.Close())
	assert.Error(t, sfv.Close())
}
