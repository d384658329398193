package index

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
)

func roadsType(t *testing.T) *feature.SimpleFeatureType {
	sft, err := feature.ParseSpec("roads",
		"name:String:index=true,lanes:Integer:index=true,tags:List[String]:index=true,speed:Double,dtg:Date,*geom:Point")
	require.NoError(t, err)
	return sft
}

func TestKeySpaceIdentity(t *testing.T) {
	ks := NewAttributeKeySpace(0)
	assert.Equal(t, "attr", ks.Name())
	assert.Equal(t, 3, ks.Version())
	assert.Equal(t, DefaultShards, ks.Shards())
	assert.Equal(t, 1, NewAttributeKeySpace(-3).Shards())
	assert.Equal(t, 255, NewAttributeKeySpace(1000).Shards())
	assert.Less(t, int(ks.Shard("road-1")), DefaultShards)
	assert.Equal(t, ks.Shard("road-1"), ks.Shard("road-1"))
}

func TestTierOf(t *testing.T) {
	assert.Equal(t, TierZ2, TierOf(roadsType(t)))

	lines, err := feature.ParseSpec("t", "name:String,dtg:Date,*geom:LineString")
	require.NoError(t, err)
	assert.Equal(t, TierDate, TierOf(lines))

	plain, err := feature.ParseSpec("t", "name:String")
	require.NoError(t, err)
	assert.Equal(t, TierNone, TierOf(plain))
	assert.Equal(t, "none", TierNone.String())
}

func TestValidateRejectsIndexedGeometry(t *testing.T) {
	ks := NewAttributeKeySpace(4)
	require.NoError(t, ks.Validate(roadsType(t)))

	sft, err := feature.ParseSpec("t", "*geom:Point:index=true")
	require.NoError(t, err)
	assert.True(t, geoerrors.IsType(ks.Validate(sft), geoerrors.ErrorTypeInvalidSchema))
}

func TestKeysAndDecode(t *testing.T) {
	sft := roadsType(t)
	ks := NewAttributeKeySpace(4)
	f := feature.MustNewSimpleFeature(sft, "road-7", "main", 2, []string{"a", "b", "a"}, 50.0,
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), orb.Point{10, 20})

	keys, err := ks.Keys(sft, f)
	require.NoError(t, err)
	require.Len(t, keys, 4)

	var values []any
	for _, key := range keys {
		assert.Equal(t, ks.Shard("road-7"), key[0])
		k, err := ks.Decode(sft, key)
		require.NoError(t, err)
		assert.Equal(t, "road-7", k.ID)
		assert.Equal(t, binary.BigEndian.AppendUint64(nil, Z2(orb.Point{10, 20})), k.Tier)
		values = append(values, k.Value)
	}
	assert.Equal(t, []any{"main", int32(2), "a", "b"}, values)

	empty := feature.MustNewSimpleFeature(sft, "road-8")
	keys, err = ks.Keys(sft, empty)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDecodeErrors(t *testing.T) {
	sft := roadsType(t)
	ks := NewAttributeKeySpace(4)
	_, err := ks.Decode(sft, []byte{0, 0})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeData))
	_, err = ks.Decode(sft, []byte{0, 0, 99, 'a', 0})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeData))
	_, err = ks.Decode(sft, []byte{0, 0, 0, 'a', 0, 1, 2})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeData))
}

func inAny(ranges []store.Range, key []byte) bool {
	for _, r := range ranges {
		if r.Contains(key) {
			return true
		}
	}
	return false
}

func TestEqualityRanges(t *testing.T) {
	sft := roadsType(t)
	ks := NewAttributeKeySpace(4)

	ranges, err := ks.Ranges(sft, Query{Attribute: "name", Equals: "main"})
	require.NoError(t, err)
	require.Len(t, ranges, 4)

	match := feature.MustNewSimpleFeature(sft, "a", "main", nil, nil, nil, nil, orb.Point{1, 1})
	longer := feature.MustNewSimpleFeature(sft, "b", "mainline", nil, nil, nil, nil, orb.Point{1, 1})
	for _, f := range []*feature.SimpleFeature{match, longer} {
		keys, err := ks.Keys(sft, f)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, f == match, inAny(ranges, keys[0]), f.ID())
	}

	ranges, err = ks.Ranges(sft, Query{Attribute: "tags", Equals: "b"})
	require.NoError(t, err)
	tagged := feature.MustNewSimpleFeature(sft, "c", nil, nil, []string{"a", "b"})
	keys, err := ks.Keys(sft, tagged)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.False(t, inAny(ranges, keys[0]))
	assert.True(t, inAny(ranges, keys[1]))
}

func TestBBoxNarrowsEquality(t *testing.T) {
	sft := roadsType(t)
	ks := NewAttributeKeySpace(2)
	box := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}

	ranges, err := ks.Ranges(sft, Query{Attribute: "name", Equals: "main", BBox: &box})
	require.NoError(t, err)
	require.Len(t, ranges, 2)

	inside := feature.MustNewSimpleFeature(sft, "in", "main", nil, nil, nil, nil, orb.Point{5, 5})
	outside := feature.MustNewSimpleFeature(sft, "out", "main", nil, nil, nil, nil, orb.Point{-50, -50})
	keys, err := ks.Keys(sft, inside)
	require.NoError(t, err)
	assert.True(t, inAny(ranges, keys[0]))
	keys, err = ks.Keys(sft, outside)
	require.NoError(t, err)
	assert.False(t, inAny(ranges, keys[0]))
}

func TestBoundedRanges(t *testing.T) {
	sft := roadsType(t)
	ks := NewAttributeKeySpace(3)
	key := func(lanes int) []byte {
		keys, err := ks.Keys(sft, feature.MustNewSimpleFeature(sft, "x", nil, lanes))
		require.NoError(t, err)
		require.Len(t, keys, 1)
		return keys[0]
	}

	cases := []struct {
		name string
		q    Query
		in   []int
		out  []int
	}{
		{"closed open", Query{Attribute: "lanes", Lower: &Bound{Value: 2, Inclusive: true}, Upper: &Bound{Value: 4}}, []int{2, 3}, []int{1, 4}},
		{"open closed", Query{Attribute: "lanes", Lower: &Bound{Value: 2}, Upper: &Bound{Value: 4, Inclusive: true}}, []int{3, 4}, []int{2, 5}},
		{"unbounded above", Query{Attribute: "lanes", Lower: &Bound{Value: -1, Inclusive: true}}, []int{-1, 0, 1 << 20}, []int{-2}},
		{"unbounded below", Query{Attribute: "lanes", Upper: &Bound{Value: 0}}, []int{-7, -1}, []int{0, 3}},
		{"everything", Query{Attribute: "lanes"}, []int{-7, 0, 9}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ranges, err := ks.Ranges(sft, tc.q)
			require.NoError(t, err)
			for _, n := range tc.in {
				assert.True(t, inAny(ranges, key(n)), "%d should match", n)
			}
			for _, n := range tc.out {
				assert.False(t, inAny(ranges, key(n)), "%d should not match", n)
			}
		})
	}

	ranges, err := ks.Ranges(sft, Query{Attribute: "lanes", Lower: &Bound{Value: 5}, Upper: &Bound{Value: 5}})
	require.NoError(t, err)
	assert.Empty(t, ranges)

	nameKeys, err := ks.Keys(sft, feature.MustNewSimpleFeature(sft, "x", "main"))
	require.NoError(t, err)
	ranges, err = ks.Ranges(sft, Query{Attribute: "lanes"})
	require.NoError(t, err)
	assert.False(t, inAny(ranges, nameKeys[0]))
}

func TestRangesRejectBadQueries(t *testing.T) {
	sft := roadsType(t)
	ks := NewAttributeKeySpace(4)
	_, err := ks.Ranges(sft, Query{Attribute: "missing", Equals: "x"})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))
	_, err = ks.Ranges(sft, Query{Attribute: "speed", Equals: 1.0})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))
	_, err = ks.Ranges(sft, Query{Attribute: "lanes", Equals: "many"})
	assert.Error(t, err)
}

func TestKeysSortByValueWithinShard(t *testing.T) {
	sft := roadsType(t)
	ks := NewAttributeKeySpace(1)
	var prev []byte
	for _, name := range []string{"a", "a\x00", "ab", "b"} {
		keys, err := ks.Keys(sft, feature.MustNewSimpleFeature(sft, "zzz", name))
		require.NoError(t, err)
		if prev != nil {
			assert.Negative(t, bytes.Compare(prev, keys[0]), name)
		}
		prev = keys[0]
	}
}
