package swapmath

import (
	"testing"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/coinsummer/clpool/internal/math/tickmath"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestComputeSwapStepFullyConsumedWithinTarget(t *testing.T) {
	price := fixedpoint.Q96
	target, err := tickmath.GetSqrtRatioAtTick(-60)
	require.NoError(t, err)
	liquidity := uint256.NewInt(1_000_000_000_000_000_000)
	amountRemaining := uint256.NewInt(1000)

	step, err := ComputeSwapStep(price, target, liquidity, amountRemaining, 3000)
	require.NoError(t, err)

	// Tiny amount relative to liquidity: price should not reach the target,
	// and amountIn+feeAmount should exactly exhaust amountRemaining.
	require.False(t, step.SqrtRatioNextX96.Eq(target))
	sum := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
	require.True(t, sum.Eq(amountRemaining))
}

func TestComputeSwapStepReachesTarget(t *testing.T) {
	price := fixedpoint.Q96
	target, err := tickmath.GetSqrtRatioAtTick(-1)
	require.NoError(t, err)
	liquidity := uint256.NewInt(1_000_000_000)
	amountRemaining := uint256.NewInt(1_000_000_000_000)

	step, err := ComputeSwapStep(price, target, liquidity, amountRemaining, 3000)
	require.NoError(t, err)
	require.True(t, step.SqrtRatioNextX96.Eq(target))
	require.True(t, !step.AmountOut.IsZero())
}

func TestComputeSwapStepFeeIsProportional(t *testing.T) {
	price := fixedpoint.Q96
	target, err := tickmath.GetSqrtRatioAtTick(-1)
	require.NoError(t, err)
	liquidity := uint256.NewInt(1_000)
	amountRemaining := uint256.NewInt(1_000_000_000_000)

	lowFee, err := ComputeSwapStep(price, target, liquidity, amountRemaining, 500)
	require.NoError(t, err)
	highFee, err := ComputeSwapStep(price, target, liquidity, amountRemaining, 10000)
	require.NoError(t, err)
	require.True(t, highFee.FeeAmount.Cmp(lowFee.FeeAmount) >= 0)
}

func TestComputeSwapStepToken1Direction(t *testing.T) {
	price := fixedpoint.Q96
	target, err := tickmath.GetSqrtRatioAtTick(1)
	require.NoError(t, err)
	liquidity := uint256.NewInt(1_000_000_000_000_000_000)
	amountRemaining := uint256.NewInt(1000)

	step, err := ComputeSwapStep(price, target, liquidity, amountRemaining, 3000)
	require.NoError(t, err)
	require.True(t, step.SqrtRatioNextX96.Gt(price))
}
