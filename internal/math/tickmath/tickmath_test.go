package tickmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestGetSqrtRatioAtTickZero(t *testing.T) {
	ratio, err := GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	// 1.0001^0 == 1, so sqrtP == 2^96 exactly.
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	require.True(t, ratio.Eq(want))
}

func TestGetSqrtRatioAtTickBounds(t *testing.T) {
	lo, err := GetSqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	require.True(t, lo.Eq(MinSqrtRatio))

	hi, err := GetSqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	require.True(t, hi.Eq(MaxSqrtRatio))
}

func TestGetSqrtRatioAtTickOutOfRange(t *testing.T) {
	_, err := GetSqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrInvalidTickRange)
	_, err = GetSqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrInvalidTickRange)
}

func TestGetSqrtRatioAtTickMonotonic(t *testing.T) {
	ticks := []int32{MinTick, -500000, -60, 0, 60, 500000, MaxTick}
	var prev *uint256.Int
	for _, tick := range ticks {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		if prev != nil {
			require.True(t, ratio.Gt(prev), "tick %d should price higher than previous", tick)
		}
		prev = ratio
	}
}

func TestGetTickAtSqrtRatioRoundTrip(t *testing.T) {
	for _, tick := range []int32{MinTick, -887000, -60, 0, 1, 60, 887000} {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		gotTick, err := GetTickAtSqrtRatio(ratio)
		require.NoError(t, err)
		require.Equal(t, tick, gotTick)
	}
}

func TestGetTickAtSqrtRatioOutOfRange(t *testing.T) {
	_, err := GetTickAtSqrtRatio(new(uint256.Int).Sub(MinSqrtRatio, uint256.NewInt(1)))
	require.ErrorIs(t, err, ErrInvalidTickRange)
	_, err = GetTickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrInvalidTickRange)
}

func TestGetTickAtSqrtRatioFloor(t *testing.T) {
	// A ratio strictly between two tick prices should floor to the lower tick.
	at60, err := GetSqrtRatioAtTick(60)
	require.NoError(t, err)
	at61, err := GetSqrtRatioAtTick(61)
	require.NoError(t, err)
	mid := new(uint256.Int).Add(at60, new(uint256.Int).Rsh(new(uint256.Int).Sub(at61, at60), 1))
	tick, err := GetTickAtSqrtRatio(mid)
	require.NoError(t, err)
	require.Equal(t, int32(60), tick)
}
