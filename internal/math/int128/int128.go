// Package int128 provides the signed 128-bit integer spec.md calls for on
// liquidityNet, liquidity deltas and the signed amount0/amount1 deltas swap
// returns, backed by a uint256 magnitude since Go has no native int128.
package int128

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned when a value or the result of an operation would
// not fit in a signed 128-bit integer.
var ErrOverflow = errors.New("int128: overflow")

// maxMagnitude is 2^127, the largest magnitude representable (exactly, for
// the negative value -2^127; 2^127-1 for the positive side).
var maxMagnitude = new(uint256.Int).Lsh(uint256.NewInt(1), 127)

// Int is a signed 128-bit integer: a sign flag plus an unsigned magnitude.
// The zero value is 0.
type Int struct {
	neg bool
	mag *uint256.Int
}

// Zero returns the additive identity.
func Zero() *Int { return &Int{mag: new(uint256.Int)} }

// FromInt64 builds an Int from a native signed integer.
func FromInt64(v int64) *Int {
	if v < 0 {
		return &Int{neg: true, mag: uint256.NewInt(uint64(-v))}
	}
	return &Int{mag: uint256.NewInt(uint64(v))}
}

// FromUint256 builds a non-negative Int from a magnitude, failing if it
// exceeds the positive 128-bit range (2^127 - 1).
func FromUint256(mag *uint256.Int) (*Int, error) {
	if mag.Cmp(maxMagnitude) >= 0 {
		return nil, ErrOverflow
	}
	return &Int{mag: mag.Clone()}, nil
}

// NegFromUint256 builds a non-positive Int (-mag), failing if the magnitude
// exceeds the negative 128-bit range (2^127).
func NegFromUint256(mag *uint256.Int) (*Int, error) {
	if mag.Cmp(maxMagnitude) > 0 {
		return nil, ErrOverflow
	}
	if mag.IsZero() {
		return Zero(), nil
	}
	return &Int{neg: true, mag: mag.Clone()}, nil
}

// FromDecimalString parses the output of String back into an Int, failing
// if the magnitude does not fit in the signed 128-bit range.
func FromDecimalString(s string) (*Int, error) {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	mag, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	if neg {
		return NegFromUint256(mag)
	}
	return FromUint256(mag)
}

// Abs returns the unsigned magnitude.
func (z *Int) Abs() *uint256.Int { return z.mag.Clone() }

// Sign returns -1, 0, or 1.
func (z *Int) Sign() int {
	if z.mag.IsZero() {
		return 0
	}
	if z.neg {
		return -1
	}
	return 1
}

// IsZero reports whether z is 0.
func (z *Int) IsZero() bool { return z.mag.IsZero() }

// Neg returns -z.
func (z *Int) Neg() *Int {
	if z.mag.IsZero() {
		return Zero()
	}
	return &Int{neg: !z.neg, mag: z.mag.Clone()}
}

// Add returns z+other, failing with ErrOverflow if the sum does not fit in
// the signed 128-bit range.
func (z *Int) Add(other *Int) (*Int, error) {
	if z.neg == other.neg {
		mag := new(uint256.Int).Add(z.mag, other.mag)
		if z.neg {
			return NegFromUint256(mag)
		}
		return FromUint256(mag)
	}
	// Opposite signs: subtract the smaller magnitude from the larger.
	if z.mag.Cmp(other.mag) >= 0 {
		mag := new(uint256.Int).Sub(z.mag, other.mag)
		if z.neg {
			return NegFromUint256(mag)
		}
		return FromUint256(mag)
	}
	mag := new(uint256.Int).Sub(other.mag, z.mag)
	if other.neg {
		return NegFromUint256(mag)
	}
	return FromUint256(mag)
}

// Cmp compares z and other as signed integers.
func (z *Int) Cmp(other *Int) int {
	zs, os := z.Sign(), other.Sign()
	if zs != os {
		if zs < os {
			return -1
		}
		return 1
	}
	switch zs {
	case 0:
		return 0
	case 1:
		return z.mag.Cmp(other.mag)
	default:
		return other.mag.Cmp(z.mag)
	}
}

// Eq reports whether z == other.
func (z *Int) Eq(other *Int) bool { return z.Cmp(other) == 0 }

// String renders the value in decimal, with a leading '-' when negative.
func (z *Int) String() string {
	if z.neg && !z.mag.IsZero() {
		return "-" + z.mag.Dec()
	}
	return z.mag.Dec()
}
