package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x03}, PrefixEnd([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
	assert.Nil(t, PrefixEnd(nil))

	prefix := []byte{0x05, 0xff}
	_ = PrefixEnd(prefix)
	assert.Equal(t, []byte{0x05, 0xff}, prefix)
}

func TestRangeContains(t *testing.T) {
	r := PrefixRange([]byte("ab"))
	assert.True(t, r.Contains([]byte("ab")))
	assert.True(t, r.Contains([]byte("abzzz")))
	assert.False(t, r.Contains([]byte("ac")))
	assert.False(t, r.Contains([]byte("aa")))

	open := Range{}
	assert.True(t, open.Contains([]byte{0xff, 0xff}))
	assert.False(t, open.Empty())

	assert.True(t, Range{Start: []byte("b"), End: []byte("a")}.Empty())
	assert.True(t, Range{Start: []byte("a"), End: []byte("a")}.Empty())
}
