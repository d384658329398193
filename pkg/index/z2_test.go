package index

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestZ2RoundTrip(t *testing.T) {
	for _, p := range []orb.Point{{0, 0}, {-122.4194, 37.7749}, {151.2093, -33.8688}, {-180, -90}, {179.9999, 89.9999}} {
		got := Z2Decode(Z2(p))
		assert.InDelta(t, p.Lon(), got.Lon(), 1e-6)
		assert.InDelta(t, p.Lat(), got.Lat(), 1e-6)
	}
}

func TestZ2Corners(t *testing.T) {
	assert.Equal(t, uint64(0), Z2(orb.Point{-180, -90}))
	assert.Equal(t, uint64(1)<<62-1, Z2(orb.Point{180, 90}))
	assert.Equal(t, Z2(orb.Point{180, 90}), Z2(orb.Point{500, 100}))
}

func TestZ2BoundsContainBox(t *testing.T) {
	box := orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{20, 15}}
	lo, hi := Z2(box.Min), Z2(box.Max)
	for x := -10.0; x <= 20; x += 2.5 {
		for y := -5.0; y <= 15; y += 2.5 {
			z := Z2(orb.Point{x, y})
			assert.GreaterOrEqual(t, z, lo)
			assert.LessOrEqual(t, z, hi)
		}
	}
}

func TestSpreadSquash(t *testing.T) {
	for _, v := range []uint32{0, 1, 0x55555555 & z2Max, z2Max, 123456789} {
		assert.Equal(t, v, squash(spread(v)))
		assert.Zero(t, spread(v)&0xaaaaaaaaaaaaaaaa)
	}
}
