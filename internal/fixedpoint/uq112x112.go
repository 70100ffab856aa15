package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Resolution is the number of fractional bits of a UQ112x112 value.
const Resolution = 112

var (
	q112       = new(uint256.Int).Lsh(uint256.NewInt(1), Resolution)
	maxUint112 = new(uint256.Int).Sub(q112, uint256.NewInt(1))
	mask224    = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 224), uint256.NewInt(1))
)

// MaxUint112 returns 2^112-1, the largest value a reserve may hold.
func MaxUint112() *uint256.Int {
	return new(uint256.Int).Set(maxUint112)
}

// FitsUint112 reports whether v can be stored as a reserve.
func FitsUint112(v *uint256.Int) bool {
	return v != nil && !v.Gt(maxUint112)
}

// UQ112x112 is an unsigned fixed-point number with 112 integer and 112 fractional bits.
type UQ112x112 struct {
	v uint256.Int
}

// Encode converts an integer of at most 112 bits into UQ112x112.
func Encode(y *uint256.Int) (UQ112x112, error) {
	if !FitsUint112(y) {
		return UQ112x112{}, fmt.Errorf("encode: value exceeds uint112")
	}
	var q UQ112x112
	q.v.Mul(y, q112)
	return q, nil
}

// Div divides q by an integer of at most 112 bits. Division by zero yields zero, matching EVM semantics.
func (q UQ112x112) Div(y *uint256.Int) UQ112x112 {
	var out UQ112x112
	out.v.Div(&q.v, y)
	return out
}

// Fraction returns numerator/denominator as UQ112x112. Both operands must fit in 112 bits.
func Fraction(numerator, denominator *uint256.Int) (UQ112x112, error) {
	if denominator == nil || denominator.IsZero() {
		return UQ112x112{}, fmt.Errorf("fraction: zero denominator")
	}
	if !FitsUint112(denominator) {
		return UQ112x112{}, fmt.Errorf("fraction: denominator exceeds uint112")
	}
	q, err := Encode(numerator)
	if err != nil {
		return UQ112x112{}, err
	}
	return q.Div(denominator), nil
}

// Raw returns the underlying 224-bit representation.
func (q UQ112x112) Raw() *uint256.Int {
	return new(uint256.Int).Set(&q.v)
}

// Decode truncates the fractional bits.
func (q UQ112x112) Decode() *uint256.Int {
	return new(uint256.Int).Rsh(&q.v, Resolution)
}

// MulDecode multiplies by an integer and truncates the fractional bits.
func (q UQ112x112) MulDecode(y *uint256.Int) (*uint256.Int, error) {
	prod, overflow := new(uint256.Int).MulOverflow(&q.v, y)
	if overflow {
		return nil, fmt.Errorf("mul decode: overflow")
	}
	return prod.Rsh(prod, Resolution), nil
}

// Rat returns the exact rational value.
func (q UQ112x112) Rat() *big.Rat {
	return new(big.Rat).SetFrac(q.v.ToBig(), q112.ToBig())
}

// String renders the value with 18 decimal places.
func (q UQ112x112) String() string {
	return q.Rat().FloatString(18)
}

// FromRaw wraps a raw 224-bit value, e.g. one read back from storage.
func FromRaw(raw *uint256.Int) UQ112x112 {
	var q UQ112x112
	q.v.And(raw, mask224)
	return q
}
