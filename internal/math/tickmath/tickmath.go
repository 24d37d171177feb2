// Package tickmath implements the bijection between integer ticks and
// Q64.96 sqrt-prices: sqrtP = 1.0001^(tick/2) * 2^96.
//
// Grounded on the bit-decomposition constant table used throughout the
// Uniswap v3 family of Go ports (see the retrieved defistate-client-go
// tickmath calculator), generalized onto uint256.Int and with the inverse
// computed by binary search over GetSqrtRatioAtTick rather than the
// original's log2-decode trick, which keeps this package self-contained and
// easy to audit against spec.
package tickmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// MinTick and MaxTick bound every tick accepted anywhere in the engine.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// ErrInvalidTickRange is returned for any tick or sqrt-price outside the
// bounds above, matching spec's InvalidTickRange error kind.
var ErrInvalidTickRange = errors.New("tickmath: invalid tick range")

var (
	// MinSqrtRatio = getSqrtRatioAtTick(MinTick).
	MinSqrtRatio = mustUint256FromDecimal("4295128739")
	// MaxSqrtRatio = getSqrtRatioAtTick(MaxTick).
	MaxSqrtRatio = mustUint256FromDecimal("1461446703485210103287273052203988822378723970342")

	one        = uint256.NewInt(1)
	maxUint256 = new(uint256.Int).Not(uint256.NewInt(0))

	// ratioConstants[i] = 2^128 / sqrt(1.0001^(2^i)) for i in [0,20),
	// laid out exactly as the canonical Uniswap v3 tables (bit 19 is the
	// highest ever set since MaxTick < 2^20) so results are bit-identical
	// across implementations.
	ratioConstants = [20]*uint256.Int{
		mustUint256FromHex("fffcb933bd6fad37aa2d162d1a594001"),
		mustUint256FromHex("fff97272373d413259a46990580e213a"),
		mustUint256FromHex("fff2e50f5f656932ef12357cf3c7fdcc"),
		mustUint256FromHex("ffe5caca7e10e4e61c3624eaa0941cd0"),
		mustUint256FromHex("ffcb9843d60f6159c9db58835c926644"),
		mustUint256FromHex("ff973b41fa98c081472e6896dfb254c0"),
		mustUint256FromHex("ff2ea16466c96a3843ec78b326b52861"),
		mustUint256FromHex("fe5dee046a99a2a811c461f1969c3053"),
		mustUint256FromHex("fcbe86c7900a88aedcffc83b479aa3a4"),
		mustUint256FromHex("f987a7253ac413176f2b074cf7815e54"),
		mustUint256FromHex("f3392b0822b70005940c7a398e4b70f3"),
		mustUint256FromHex("e7159475a2c29b7443b29c7fa6e889d9"),
		mustUint256FromHex("d097f3bdfd2022b8845ad8f792aa5825"),
		mustUint256FromHex("a9f746462d870fdf8a65dc1f90e061e5"),
		mustUint256FromHex("70d869a156d2a1b890bb3df62baf32f7"),
		mustUint256FromHex("31be135f97d08fd981231505542fcfa6"),
		mustUint256FromHex("9aa508b5b7a84e1c677de54f3e99bc9"),
		mustUint256FromHex("5d6af8dedb81196699c329225ee604"),
		mustUint256FromHex("2216e584f5fa1ea926041bedfe98"),
		mustUint256FromHex("48a170391f7dc42444e8fa2"),
	}
)

// GetSqrtRatioAtTick computes sqrt(1.0001^tick) * 2^96 as a Q64.96 value.
func GetSqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrInvalidTickRange
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	var ratio *uint256.Int
	if absTick&0x1 != 0 {
		ratio = ratioConstants[0].Clone()
	} else {
		ratio = new(uint256.Int).Lsh(one, 128)
	}
	for i := 1; i < len(ratioConstants); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, ratioConstants[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio = new(uint256.Int).Div(maxUint256, ratio)
	}

	// Convert from Q128.128 to Q64.96, rounding up.
	remainder := new(uint256.Int).Mod(ratio, new(uint256.Int).Lsh(one, 32))
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.Add(ratio, one)
	}
	return ratio, nil
}

// GetTickAtSqrtRatio returns the greatest tick such that
// GetSqrtRatioAtTick(tick) <= sqrtPriceX96.
func GetTickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, ErrInvalidTickRange
	}

	lo, hi := MinTick, MaxTick
	answer := MinTick
	for lo <= hi {
		mid := lo + (hi-lo)/2
		ratio, err := GetSqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			answer = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return answer, nil
}

func mustUint256FromHex(s string) *uint256.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("tickmath: bad hex constant " + s)
	}
	return uint256.MustFromBig(v)
}

func mustUint256FromDecimal(s string) *uint256.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("tickmath: bad decimal constant " + s)
	}
	return uint256.MustFromBig(v)
}
