package fixedpoint

import (
	"github.com/holiman/uint256"
)

// Cumulative is a time-weighted price accumulator. Arithmetic wraps modulo 2^224, so
// consumers must only ever difference two samples; absolute values are meaningless
// once the accumulator has wrapped.
type Cumulative struct {
	v uint256.Int
}

// CumulativeFromRaw wraps a raw accumulator value, reducing it modulo 2^224.
func CumulativeFromRaw(raw *uint256.Int) Cumulative {
	var c Cumulative
	c.v.And(raw, mask224)
	return c
}

// Advance returns c + price*elapsed (mod 2^224).
func (c Cumulative) Advance(price UQ112x112, elapsed uint32) Cumulative {
	// price < 2^224 and elapsed < 2^32, so the product fits in 256 bits.
	var delta uint256.Int
	delta.Mul(&price.v, uint256.NewInt(uint64(elapsed)))

	var out Cumulative
	out.v.Add(&c.v, &delta)
	out.v.And(&out.v, mask224)
	return out
}

// Since returns c - earlier (mod 2^224).
func (c Cumulative) Since(earlier Cumulative) *uint256.Int {
	diff := new(uint256.Int).Sub(&c.v, &earlier.v)
	return diff.And(diff, mask224)
}

// Raw returns the accumulator value.
func (c Cumulative) Raw() *uint256.Int {
	return new(uint256.Int).Set(&c.v)
}

// Equal reports whether two accumulators hold the same value.
func (c Cumulative) Equal(other Cumulative) bool {
	return c.v.Eq(&other.v)
}

// AverageOverInterval returns the time-weighted average price between two samples
// taken elapsed seconds apart. A zero interval yields zero.
func AverageOverInterval(earlier, later Cumulative, elapsed uint32) UQ112x112 {
	var avg UQ112x112
	if elapsed == 0 {
		return avg
	}
	avg.v.Div(later.Since(earlier), uint256.NewInt(uint64(elapsed)))
	return avg
}
