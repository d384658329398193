package index

import (
	"bytes"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/geovec/pkg/feature"
)

func assertOrderPreserved(t *testing.T, typ feature.AttributeType, sorted []any) {
	t.Helper()
	encoded := make([][]byte, len(sorted))
	for i, v := range sorted {
		enc, err := EncodeValue(typ, v)
		require.NoError(t, err)
		encoded[i] = append(enc, terminator)

		decoded, rest, err := DecodeValue(typ, append(bytes.Clone(encoded[i]), 'x'))
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
		assert.Equal(t, []byte("x"), rest)
	}
	assert.True(t, sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}), "%s encoding does not preserve order", typ)
}

func TestLexicodersPreserveOrder(t *testing.T) {
	assertOrderPreserved(t, feature.TypeString, []any{"", "\x00", "\x00\x00", "\x01", "a", "a\x00b", "ab", "b"})
	assertOrderPreserved(t, feature.TypeBytes, []any{[]byte{}, []byte{0}, []byte{0, 1}, []byte{1}, []byte{1, 0}, []byte{2}})
	assertOrderPreserved(t, feature.TypeInteger, []any{int32(math.MinInt32), int32(-5), int32(0), int32(7), int32(math.MaxInt32)})
	assertOrderPreserved(t, feature.TypeLong, []any{int64(math.MinInt64), int64(-1), int64(0), int64(1) << 40, int64(math.MaxInt64)})
	assertOrderPreserved(t, feature.TypeFloat, []any{float32(math.Inf(-1)), float32(-2.5), float32(-0.5), float32(0), float32(1e-9), float32(3.25), float32(math.Inf(1))})
	assertOrderPreserved(t, feature.TypeDouble, []any{math.Inf(-1), -1e300, -1.5, 0.0, 1e-300, 2.75, math.Inf(1)})
	assertOrderPreserved(t, feature.TypeBoolean, []any{false, true})
	assertOrderPreserved(t, feature.TypeDate, []any{
		time.UnixMilli(-1000).UTC(),
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	assertOrderPreserved(t, feature.TypeUUID, []any{
		uuid.MustParse("00000000-0000-0000-0000-000000000000"),
		uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	})
}

func TestEncodeValueErrors(t *testing.T) {
	_, err := EncodeValue(feature.TypePoint, nil)
	assert.Error(t, err)
	_, err = EncodeValue(feature.TypeInteger, "seven")
	assert.Error(t, err)
}

func TestDecodeValueErrors(t *testing.T) {
	_, _, err := DecodeValue(feature.TypeString, []byte("no terminator"))
	assert.Error(t, err)
	_, _, err = DecodeValue(feature.TypeString, []byte{'a', escape})
	assert.Error(t, err)
	_, _, err = DecodeValue(feature.TypeString, []byte{escape, 0x09, terminator})
	assert.Error(t, err)
	_, _, err = DecodeValue(feature.TypeLong, []byte{1, 2, 3})
	assert.Error(t, err)
	_, _, err = DecodeValue(feature.TypeInteger, []byte{1, 2, 3, 4, 5})
	assert.Error(t, err)
}
