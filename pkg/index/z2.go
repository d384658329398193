package index

import "github.com/paulmach/orb"

// z2Bits is the precision of each dimension of a Z2 value.
const z2Bits = 31

const z2Max = 1<<z2Bits - 1

// Z2 interleaves the normalized longitude (even bits) and latitude (odd
// bits) of p into a 62-bit Morton code. Coordinates are clamped to the WGS84
// range.
func Z2(p orb.Point) uint64 {
	x := normalize(p.Lon(), -180, 180)
	y := normalize(p.Lat(), -90, 90)
	return spread(x) | spread(y)<<1
}

// Z2Decode returns the lower left corner of the cell of z.
func Z2Decode(z uint64) orb.Point {
	x, y := squash(z), squash(z>>1)
	return orb.Point{
		denormalize(x, -180, 180),
		denormalize(y, -90, 90),
	}
}

func normalize(v, lo, hi float64) uint32 {
	if v <= lo {
		return 0
	}
	if v >= hi {
		return z2Max
	}
	return uint32((v - lo) / (hi - lo) * z2Max)
}

func denormalize(n uint32, lo, hi float64) float64 {
	return lo + float64(n)/z2Max*(hi-lo)
}

// spread moves bit i of v to bit 2i.
func spread(v uint32) uint64 {
	x := uint64(v) & 0x7fffffff
	x = (x | x<<16) & 0x0000ffff0000ffff
	x = (x | x<<8) & 0x00ff00ff00ff00ff
	x = (x | x<<4) & 0x0f0f0f0f0f0f0f0f
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return x
}

// squash gathers the even bits of z.
func squash(z uint64) uint32 {
	x := z & 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0f0f0f0f0f0f0f0f
	x = (x | x>>4) & 0x00ff00ff00ff00ff
	x = (x | x>>8) & 0x0000ffff0000ffff
	x = (x | x>>16) & 0x00000000ffffffff
	return uint32(x)
}
