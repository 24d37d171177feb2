// Package fixedpoint implements the Q64.96 / Q128.128 fixed-point primitives
// the rest of the engine is built on: a full-precision mulDiv with an
// explicit rounding direction, and the Q96/Q128 scaling constants.
//
// The 512-bit intermediate product required by mulDiv has no native 256-bit
// representation, so the multiply/divide step is carried out in math/big
// and the result is re-packed into a fixed-width uint256.Int, failing
// loudly if it doesn't fit — the same discipline the rest of the engine
// uses uint256 for everywhere else (wraparound-correct Add/Sub on the
// fee-growth accumulators).
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned whenever a fixed-point operation would not fit in
// 256 bits. Every arithmetic site in this engine that isn't one of the
// explicitly-modular fee-growth subtractions treats this as fatal.
var ErrOverflow = errors.New("fixedpoint: overflow")

var (
	// Q96 is 2^96, the Q64.96 scaling factor for sqrt-prices.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// Q128 is 2^128, the Q128.128 scaling factor for fee growth.
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
)

// MulDiv computes floor(a*b/denom) over a full-precision intermediate
// product, failing with ErrOverflow if the quotient does not fit in 256
// bits or denom is zero.
func MulDiv(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrOverflow
	}
	product := new(big.Int).Mul(a.ToBig(), b.ToBig())
	quotient := new(big.Int).Div(product, denom.ToBig())
	return toUint256(quotient)
}

// MulDivRoundingUp computes ceil(a*b/denom) with the same full-precision
// product and the same overflow discipline as MulDiv.
func MulDivRoundingUp(a, b, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrOverflow
	}
	product := new(big.Int).Mul(a.ToBig(), b.ToBig())
	quotient, rem := new(big.Int).QuoRem(product, denom.ToBig(), new(big.Int))
	if rem.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return toUint256(quotient)
}

// MulDivRounding picks MulDiv or MulDivRoundingUp based on roundUp, so call
// sites that already carry an explicit rounding-direction flag can forward
// it directly instead of branching themselves.
func MulDivRounding(a, b, denom *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if roundUp {
		return MulDivRoundingUp(a, b, denom)
	}
	return MulDiv(a, b, denom)
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, ErrOverflow
	}
	return uint256.MustFromBig(v), nil
}
