// Package sqrtpricemath computes the effect of adding/removing amounts of
// token0 or token1 on the pool's sqrt-price, and the token amounts implied
// by moving between two sqrt-prices at a given liquidity.
package sqrtpricemath

import (
	"errors"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/holiman/uint256"
)

// ErrOverflow mirrors fixedpoint.ErrOverflow for callers that only import
// this package.
var ErrOverflow = fixedpoint.ErrOverflow

// ErrInvalidAmount is returned when a requested price movement is
// impossible at the given liquidity (e.g. it would drive liquidity+amountIn
// to zero).
var ErrInvalidAmount = errors.New("sqrtpricemath: invalid amount for price move")

// GetNextSqrtPriceFromInput returns the sqrt-price after adding amountIn of
// token0 (zeroForOne) or token1 (!zeroForOne) to the pool. Exact-output
// swaps are a non-goal, so only the "adding" direction is implemented.
func GetNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() || liquidity.IsZero() {
		return nil, ErrInvalidAmount
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn)
}

// getNextSqrtPriceFromAmount0RoundingUp implements
// sqrtP' = liquidity*sqrtP / (liquidity + amount*sqrtP), rounding the outer
// division up so the next price is never understated when token0 is
// supplied. When the product amount*sqrtP would not fit 256 bits it falls
// back to the division-first form liquidity*2^96 / (liquidity*2^96/sqrtP +
// amount), with the inner division rounded down and the outer one rounded up.
func getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtPX96.Clone(), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)

	product, noOverflow := new(uint256.Int).MulOverflow(amount, sqrtPX96)
	if noOverflow {
		if denom, noOverflow := new(uint256.Int).AddOverflow(numerator1, product); noOverflow {
			return fixedpoint.MulDivRoundingUp(numerator1, sqrtPX96, denom)
		}
	}
	divided := new(uint256.Int).Div(numerator1, sqrtPX96)
	denom := new(uint256.Int).Add(divided, amount)
	if denom.IsZero() {
		return nil, ErrInvalidAmount
	}
	return ceilDiv(numerator1, denom)
}

// getNextSqrtPriceFromAmount1RoundingDown implements
// sqrtP' = sqrtP + amount*Q96/liquidity, rounding the quotient down.
func getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	quotient, err := fixedpoint.MulDiv(amount, fixedpoint.Q96, liquidity)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Add(sqrtPX96, quotient), nil
}

// GetAmount0Delta returns the unsigned amount of token0 required to move
// liquidity L from sqrtPa to sqrtPb (the arguments may be given in either
// order), rounding up when roundUp is set (the amount a user must pay in)
// and down otherwise (the amount the pool pays out).
//
//	amount0 = L*Q96*(sqrtPb - sqrtPa) / (sqrtPa*sqrtPb)
func GetAmount0Delta(sqrtPa, sqrtPb, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtPa.Cmp(sqrtPb) > 0 {
		sqrtPa, sqrtPb = sqrtPb, sqrtPa
	}
	if sqrtPa.IsZero() {
		return nil, ErrInvalidAmount
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtPb, sqrtPa)

	if roundUp {
		inner, err := fixedpoint.MulDivRoundingUp(numerator1, numerator2, sqrtPb)
		if err != nil {
			return nil, err
		}
		return ceilDiv(inner, sqrtPa)
	}
	inner, err := fixedpoint.MulDiv(numerator1, numerator2, sqrtPb)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(inner, sqrtPa), nil
}

func ceilDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrOverflow
	}
	q, r := new(uint256.Int).DivMod(a, b, new(uint256.Int))
	if !r.IsZero() {
		q = new(uint256.Int).Add(q, uint256.NewInt(1))
	}
	return q, nil
}

// GetAmount1Delta returns the unsigned amount of token1 required to move
// liquidity L from sqrtPa to sqrtPb, rounding per roundUp as above.
//
//	amount1 = L*(sqrtPb - sqrtPa) / Q96
func GetAmount1Delta(sqrtPa, sqrtPb, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtPa.Cmp(sqrtPb) > 0 {
		sqrtPa, sqrtPb = sqrtPb, sqrtPa
	}
	diff := new(uint256.Int).Sub(sqrtPb, sqrtPa)
	if roundUp {
		return fixedpoint.MulDivRoundingUp(liquidity, diff, fixedpoint.Q96)
	}
	return fixedpoint.MulDiv(liquidity, diff, fixedpoint.Q96)
}
