package attrindex

import (
	"context"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/index"
	"github.com/ajitpratap0/geovec/pkg/store/memory"
)

func roads(t *testing.T) (*feature.SimpleFeatureType, []feature.Feature) {
	sft, err := feature.ParseSpec("roads", "name:String:index=true,lanes:Integer:index=true,*geom:Point")
	require.NoError(t, err)
	return sft, []feature.Feature{
		feature.MustNewSimpleFeature(sft, "r1", "main", 2, orb.Point{1, 1}),
		feature.MustNewSimpleFeature(sft, "r2", "main", 4, orb.Point{50, 50}),
		feature.MustNewSimpleFeature(sft, "r3", "elm", 1, orb.Point{2, 2}),
		feature.MustNewSimpleFeature(sft, "r4", nil, 3, orb.Point{3, 3}),
	}
}

func entries(fs []feature.Feature) []Entry {
	out := make([]Entry, len(fs))
	for i, f := range fs {
		out[i] = Entry{Feature: f, Value: []byte(f.ID())}
	}
	return out
}

func scanIDs(t *testing.T, a *AttributeIndex, sft *feature.SimpleFeatureType, q index.Query) []string {
	t.Helper()
	var ids []string
	err := a.Scan(context.Background(), sft, q, func(key index.Key, value []byte) error {
		assert.Equal(t, key.ID, string(value))
		ids = append(ids, key.ID)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(ids)
	return ids
}

func TestVersion(t *testing.T) {
	a := NewAttributeIndexV3(memory.New(), 4)
	assert.Equal(t, 3, a.Version())
	assert.NoError(t, a.CheckCompatible(3))

	err := a.CheckCompatible(2)
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeCapability))
	assert.Contains(t, err.Error(), "version 2")
}

func TestTableName(t *testing.T) {
	a := NewAttributeIndexV3(memory.New(), 4)
	assert.Equal(t, "roads_attr_v3", a.TableName("roads"))
	assert.Equal(t, "t2024_gps_fixes_attr_v3", a.TableName("2024 gps-fixes"))
	assert.Equal(t, "t_attr_v3", a.TableName(""))
	assert.Len(t, SanitizeName("a_very_long_feature_type_name_that_keeps_going"), 32)
}

func TestWriteScanDelete(t *testing.T) {
	ctx := context.Background()
	platform := memory.New()
	a := NewAttributeIndexV3(platform, 4)
	sft, fs := roads(t)

	require.NoError(t, a.Write(ctx, sft, entries(fs)))
	assert.Equal(t, 7, platform.Len(a.TableName("roads")))

	assert.Equal(t, []string{"r1", "r2"}, scanIDs(t, a, sft, index.Query{Attribute: "name", Equals: "main"}))
	assert.Equal(t, []string{"r3"}, scanIDs(t, a, sft, index.Query{Attribute: "name", Equals: "elm"}))
	assert.Equal(t, []string{"r1", "r4"}, scanIDs(t, a, sft, index.Query{
		Attribute: "lanes",
		Lower:     &index.Bound{Value: 2, Inclusive: true},
		Upper:     &index.Bound{Value: 4},
	}))

	box := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	assert.Equal(t, []string{"r1"}, scanIDs(t, a, sft, index.Query{Attribute: "name", Equals: "main", BBox: &box}))

	require.NoError(t, a.Delete(ctx, sft, fs[:1]))
	assert.Equal(t, []string{"r2"}, scanIDs(t, a, sft, index.Query{Attribute: "name", Equals: "main"}))
	assert.Equal(t, 5, platform.Len(a.TableName("roads")))
}

func TestListAttributesAndUnknownQueries(t *testing.T) {
	sft, err := feature.ParseSpec("t", "tags:List[Integer]:index=true")
	require.NoError(t, err)
	a := NewAttributeIndexV3(memory.New(), 1)

	f := feature.MustNewSimpleFeature(sft, "a", []int32{1, 2})
	require.NoError(t, a.Write(context.Background(), sft, entries([]feature.Feature{f})))
	ids := scanIDs(t, a, sft, index.Query{Attribute: "tags", Equals: 2})
	assert.Equal(t, []string{"a"}, ids)

	_, err = a.Ranges(sft, index.Query{Attribute: "nope"})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))
}
