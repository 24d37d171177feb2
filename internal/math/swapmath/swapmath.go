// Package swapmath computes a single swap step: given a starting price, a
// target price, the liquidity active over that interval, the amount of
// input remaining and the fee tier (the caller has already clamped the target
// to the price limit), it returns the next price plus the
// amountIn/amountOut/feeAmount consumed by the step.
//
// Grounded on the retrieved defistate-client-go swapmath.ComputeSwapStep,
// narrowed to the exact-input case spec.md treats as the only supported
// direction (exact-output is an explicit non-goal/extension point).
package swapmath

import (
	"errors"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/coinsummer/clpool/internal/math/sqrtpricemath"
	"github.com/holiman/uint256"
)

// ErrOverflow mirrors fixedpoint.ErrOverflow.
var ErrOverflow = fixedpoint.ErrOverflow

// FeeDenominator is the denominator for fee-tier fractions (fee / 1e6).
var FeeDenominator = uint256.NewInt(1_000_000)

// Step is the result of computing one swap step.
type Step struct {
	SqrtRatioNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep executes one exact-input swap step from
// sqrtRatioCurrentX96 toward sqrtRatioTargetX96 (which has already been
// clamped to the more conservative of the next initialized tick and the
// caller's price limit), consuming up to amountRemaining of the input
// token at the given fee (feePips, parts-per-million of 1e6).
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *uint256.Int, feePips uint32) (*Step, error) {
	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	fee := uint256.NewInt(uint64(feePips))

	feeComplement := new(uint256.Int).Sub(FeeDenominator, fee)
	amountRemainingLessFee, err := fixedpoint.MulDiv(amountRemaining, feeComplement, FeeDenominator)
	if err != nil {
		return nil, err
	}

	var maxAmountIn *uint256.Int
	if zeroForOne {
		maxAmountIn, err = sqrtpricemath.GetAmount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
	} else {
		maxAmountIn, err = sqrtpricemath.GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
	}
	if err != nil {
		return nil, err
	}

	step := &Step{}
	reachesTarget := amountRemainingLessFee.Cmp(maxAmountIn) >= 0
	if reachesTarget {
		step.SqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
	} else {
		step.SqrtRatioNextX96, err = sqrtpricemath.GetNextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, amountRemainingLessFee, zeroForOne)
		if err != nil {
			return nil, err
		}
	}

	max := step.SqrtRatioNextX96.Eq(sqrtRatioTargetX96)

	if zeroForOne {
		if max {
			step.AmountIn = maxAmountIn
		} else {
			step.AmountIn, err = sqrtpricemath.GetAmount0Delta(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true)
			if err != nil {
				return nil, err
			}
		}
		step.AmountOut, err = sqrtpricemath.GetAmount1Delta(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
	} else {
		if max {
			step.AmountIn = maxAmountIn
		} else {
			step.AmountIn, err = sqrtpricemath.GetAmount1Delta(sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, true)
			if err != nil {
				return nil, err
			}
		}
		step.AmountOut, err = sqrtpricemath.GetAmount0Delta(sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, false)
	}
	if err != nil {
		return nil, err
	}

	if reachesTarget {
		step.FeeAmount, err = fixedpoint.MulDivRoundingUp(step.AmountIn, fee, feeComplement)
		if err != nil {
			return nil, err
		}
	} else {
		// The whole remaining amount is consumed: input plus fee.
		step.FeeAmount = new(uint256.Int).Sub(amountRemaining, step.AmountIn)
	}

	return step, nil
}
