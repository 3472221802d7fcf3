package username

import (
	"math"
	"unicode/utf16"
)

const (
	mtN         = 624
	mtM         = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff

	twoPow32 = 4294967296.0
)

// mersenneTwister is a plain MT19937 generator.
type mersenneTwister struct {
	state [mtN]uint32
	index int
}

func newMersenneTwister(seed uint32) *mersenneTwister {
	mt := &mersenneTwister{}
	mt.state[0] = seed
	for i := 1; i < mtN; i++ {
		prev := mt.state[i-1]
		mt.state[i] = 1812433253*(prev^(prev>>30)) + uint32(i)
	}
	mt.index = mtN
	return mt
}

func (mt *mersenneTwister) twist() {
	mag01 := [2]uint32{0, mtMatrixA}
	var kk int
	for kk = 0; kk < mtN-mtM; kk++ {
		y := (mt.state[kk] & mtUpperMask) | (mt.state[kk+1] & mtLowerMask)
		mt.state[kk] = mt.state[kk+mtM] ^ (y >> 1) ^ mag01[y&1]
	}
	for ; kk < mtN-1; kk++ {
		y := (mt.state[kk] & mtUpperMask) | (mt.state[kk+1] & mtLowerMask)
		mt.state[kk] = mt.state[kk+(mtM-mtN)] ^ (y >> 1) ^ mag01[y&1]
	}
	y := (mt.state[mtN-1] & mtUpperMask) | (mt.state[0] & mtLowerMask)
	mt.state[mtN-1] = mt.state[mtM-1] ^ (y >> 1) ^ mag01[y&1]
	mt.index = 0
}

// Uint32 returns the next tempered 32-bit output.
func (mt *mersenneTwister) Uint32() uint32 {
	if mt.index >= mtN {
		mt.twist()
	}
	y := mt.state[mt.index]
	mt.index++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Float64 returns a value in [0, 1) with 32 bits of resolution.
func (mt *mersenneTwister) Float64() float64 {
	return float64(mt.Uint32()) * (1.0 / twoPow32)
}

// Generator reproduces the draw sequence of a Chance.js instance constructed
// with a single string seed.
type Generator struct {
	mt *mersenneTwister
}

// NewGenerator creates a Generator seeded from the given string.
func NewGenerator(seed string) *Generator {
	return &Generator{mt: newMersenneTwister(toUint32(stringSeed(seed)))}
}

// Integer returns a uniformly drawn integer in [min, max].
func (g *Generator) Integer(min, max int) int {
	return int(math.Floor(g.mt.Float64()*float64(max-min+1) + float64(min)))
}

// stringSeed computes the numeric seed Chance.js derives from a string. The
// arithmetic runs in float64 with 32-bit shift semantics, and the per-string
// hash is added once per UTF-16 code unit.
func stringSeed(seed string) float64 {
	units := utf16.Encode([]rune(seed))

	var seedling float64
	for range units {
		var hash float64
		for _, c := range units {
			h := toInt32(hash)
			hash = float64(c) + float64(h<<6) + float64(h<<16) - hash
		}
		seedling += hash
	}
	return seedling
}

// toUint32 applies the ECMAScript ToUint32 conversion.
func toUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(f), twoPow32)
	if m < 0 {
		m += twoPow32
	}
	return uint32(m)
}

// toInt32 applies the ECMAScript ToInt32 conversion.
func toInt32(f float64) int32 {
	return int32(toUint32(f))
}
