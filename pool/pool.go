// Package pool implements the concentrated-liquidity constant-product AMM
// engine: tick-indexed liquidity bookkeeping, fee accrual, cross-tick swap
// stepping, position accounting and a ring-buffer price oracle.
//
// Grounded on the teacher's CorePool (Initialize/Mint/Burn/Collect/
// HandleSwap/modifyPosition/updatePosition), generalized from its
// decimal.Decimal fields onto the uint256/int128 representation the rest of
// this module uses, and extended with Flash (the teacher has none) and an
// explicit reentrancy lock (the teacher relies on single-threaded Go
// execution).
package pool

import (
	"sync"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/coinsummer/clpool/internal/math/sqrtpricemath"
	"github.com/coinsummer/clpool/internal/math/swapmath"
	"github.com/coinsummer/clpool/internal/math/tickmath"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Config is the pool's immutable construction-time parameters, mirroring
// the teacher's PoolConfig.
type Config struct {
	Token0      string
	Token1      string
	Fee         uint32 // parts-per-million of 1e6
	TickSpacing int32
}

// Slot0 is the pool summary updated atomically per swap, per spec.md §3.
type Slot0 struct {
	SqrtPriceX96               *uint256.Int
	Tick                       int32
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
}

// CorePool is the pool state machine: Slot0, the fee-growth globals,
// active liquidity, and the tick/position tables and oracle ring that back
// them.
type CorePool struct {
	mu sync.Mutex

	cfg Config

	slot0                Slot0
	liquidity            *uint256.Int
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int

	maxLiquidityPerTick *uint256.Int
	ticks               *TickTable
	positions           *PositionTable
	oracle              *Oracle

	ledger Ledger
	sink   func(Record)
}

// SetEventSink installs fn to receive a Record for every successful
// mutating operation (Mint/Burn/Collect/Swap/Flash/
// IncreaseObservationCardinalityNext); pass nil to disable. Generalizes the
// teacher's unused ActionType/Record pair into something actually driven.
func (p *CorePool) SetEventSink(fn func(Record)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = fn
}

func (p *CorePool) emit(actionType ActionType, payload interface{}) {
	if p.sink != nil {
		p.sink(Record{ActionType: actionType, Payload: payload})
	}
}

// lockForCallback acquires p.mu without blocking, for the entry points
// (Mint/Swap/Flash) that invoke a caller-supplied callback while holding the
// lock: a plain blocking Lock would deadlock the single goroutine if that
// callback reenters the pool, so reentry instead fails fast with
// ErrReentrant.
func (p *CorePool) lockForCallback() error {
	if !p.mu.TryLock() {
		return newErr(ErrReentrant, "reentrant call into CorePool")
	}
	return nil
}

// NewCorePool constructs an uninitialized pool for cfg; Initialize must be
// called before mint/swap/flash.
func NewCorePool(cfg Config, ledger Ledger) *CorePool {
	return &CorePool{
		cfg:                  cfg,
		liquidity:            new(uint256.Int),
		feeGrowthGlobal0X128: new(uint256.Int),
		feeGrowthGlobal1X128: new(uint256.Int),
		maxLiquidityPerTick:  MaxLiquidityPerTick(cfg.TickSpacing),
		ticks:                NewTickTable(cfg.TickSpacing),
		positions:            NewPositionTable(),
		oracle:               NewOracle(),
		ledger:               ledger,
	}
}

// Initialize sets Slot0 from the given starting sqrt-price and writes the
// oracle's first observation. Fails AlreadyInitialized if called twice.
func (p *CorePool) Initialize(sqrtPriceX96 *uint256.Int, time uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.slot0.SqrtPriceX96 != nil {
		return newErr(ErrAlreadyInitialized, "pool already initialized")
	}
	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return wrapErr(ErrInvalidPriceLimit, "invalid starting sqrt price", err)
	}
	cardinality, cardinalityNext := p.oracle.Initialize(time)
	p.slot0 = Slot0{
		SqrtPriceX96:               sqrtPriceX96.Clone(),
		Tick:                       tick,
		ObservationIndex:           0,
		ObservationCardinality:     cardinality,
		ObservationCardinalityNext: cardinalityNext,
	}
	return nil
}

// Slot0 returns a copy of the current pool summary.
func (p *CorePool) Slot0() Slot0 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slot0
}

// Liquidity returns the pool's current active liquidity.
func (p *CorePool) Liquidity() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liquidity.Clone()
}

// FeeGrowthGlobal returns the two fee-growth-global accumulators.
func (p *CorePool) FeeGrowthGlobal() (f0, f1 *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feeGrowthGlobal0X128.Clone(), p.feeGrowthGlobal1X128.Clone()
}

// Tick returns the tick table entry at the given index, or nil.
func (p *CorePool) Tick(tick int32) *TickInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks.Get(tick)
}

// Position returns the position entry for (owner, lower, upper), or nil.
func (p *CorePool) Position(owner string, lower, upper int32) *PositionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions.Get(owner, lower, upper)
}

// FeeGrowthInside returns the fee growth accrued inside [lower, upper) as
// of the pool's current tick and fee-growth globals, for external callers
// (position mirrors, oracles) that need it without mutating the pool.
func (p *CorePool) FeeGrowthInside(lower, upper int32) (fi0, fi1 *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks.GetFeeGrowthInside(lower, upper, p.slot0.Tick, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)
}

func (p *CorePool) checkTicks(lower, upper int32) error {
	if !(lower < upper) {
		return newErr(ErrInvalidTickRange, "tickLower must be less than tickUpper")
	}
	if lower < tickmath.MinTick {
		return newErr(ErrInvalidTickRange, "tickLower below MIN_TICK")
	}
	if upper > tickmath.MaxTick {
		return newErr(ErrInvalidTickRange, "tickUpper above MAX_TICK")
	}
	if lower%p.cfg.TickSpacing != 0 || upper%p.cfg.TickSpacing != 0 {
		return newErr(ErrInvalidTickRange, "ticks must be aligned to tickSpacing")
	}
	return nil
}

// Mint adds amount liquidity to [lower, upper) owned by recipient,
// computing the required token amounts and invoking mintCallback to settle
// them, per spec.md §4.7.
func (p *CorePool) Mint(recipient string, lower, upper int32, amount *uint256.Int, cb MintCallback, data []byte) (amount0, amount1 *uint256.Int, err error) {
	if err := p.lockForCallback(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	if amount.IsZero() {
		return nil, nil, newErr(ErrZeroLiquidity, "mint amount must be greater than zero")
	}

	delta, err := int128.FromUint256(amount)
	if err != nil {
		return nil, nil, wrapErr(ErrOverflow, "mint amount exceeds int128 range", err)
	}

	amount0, amount1, err = p.modifyPosition(recipient, lower, upper, delta)
	if err != nil {
		return nil, nil, err
	}

	if p.ledger != nil && cb != nil {
		var before0, before1 *uint256.Int
		if !amount0.IsZero() {
			before0, err = p.ledger.BalanceOf(p.cfg.Token0)
			if err != nil {
				return nil, nil, wrapErr(ErrInsufficientInputAmount, "balanceOf token0 failed", err)
			}
		}
		if !amount1.IsZero() {
			before1, err = p.ledger.BalanceOf(p.cfg.Token1)
			if err != nil {
				return nil, nil, wrapErr(ErrInsufficientInputAmount, "balanceOf token1 failed", err)
			}
		}
		if err := cb.MintCallback(amount0, amount1, data); err != nil {
			return nil, nil, wrapErr(ErrInsufficientInputAmount, "mintCallback failed", err)
		}
		if !amount0.IsZero() {
			after0, err := p.ledger.BalanceOf(p.cfg.Token0)
			if err != nil {
				return nil, nil, wrapErr(ErrInsufficientInputAmount, "balanceOf token0 failed", err)
			}
			want := new(uint256.Int).Add(before0, amount0)
			if after0.Cmp(want) < 0 {
				return nil, nil, newErr(ErrInsufficientInputAmount, "token0 underpaid")
			}
		}
		if !amount1.IsZero() {
			after1, err := p.ledger.BalanceOf(p.cfg.Token1)
			if err != nil {
				return nil, nil, wrapErr(ErrInsufficientInputAmount, "balanceOf token1 failed", err)
			}
			want := new(uint256.Int).Add(before1, amount1)
			if after1.Cmp(want) < 0 {
				return nil, nil, newErr(ErrInsufficientInputAmount, "token1 underpaid")
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"recipient": recipient, "lower": lower, "upper": upper,
		"amount": amount.String(), "amount0": amount0.String(), "amount1": amount1.String(),
	}).Debug("mint complete")

	p.emit(ActionMint, MintEvent{
		Sender: recipient, Owner: recipient, TickLower: lower, TickUpper: upper,
		Amount: amount.Clone(), Amount0: amount0, Amount1: amount1,
	})

	return amount0, amount1, nil
}

// Burn removes amount liquidity from [lower, upper) owned by owner,
// crediting the corresponding token amounts into the position's
// tokensOwed; no tokens move here, matching spec.md §4.7.
func (p *CorePool) Burn(owner string, lower, upper int32, amount *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delta, err := int128.FromUint256(amount)
	if err != nil {
		return nil, nil, wrapErr(ErrOverflow, "burn amount exceeds int128 range", err)
	}
	neg := delta.Neg()

	amount0, amount1, err = p.modifyPosition(owner, lower, upper, neg)
	if err != nil {
		return nil, nil, err
	}

	if !amount0.IsZero() || !amount1.IsZero() {
		pos := p.positions.GetOrCreate(owner, lower, upper)
		pos.TokensOwed0 = new(uint256.Int).Add(pos.TokensOwed0, amount0)
		pos.TokensOwed1 = new(uint256.Int).Add(pos.TokensOwed1, amount1)
	}

	logrus.WithFields(logrus.Fields{
		"owner": owner, "lower": lower, "upper": upper, "amount": amount.String(),
	}).Debug("burn complete")

	p.emit(ActionBurn, BurnEvent{
		Owner: owner, TickLower: lower, TickUpper: upper,
		Amount: amount.Clone(), Amount0: amount0, Amount1: amount1,
	})

	return amount0, amount1, nil
}

// Collect pays out up to (req0, req1) of owner's accrued tokensOwed on
// [lower, upper) to recipient.
func (p *CorePool) Collect(owner, recipient string, lower, upper int32, req0, req1 *uint256.Int) (out0, out1 *uint256.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkTicks(lower, upper); err != nil {
		return nil, nil, err
	}
	pos := p.positions.GetOrCreate(owner, lower, upper)
	out0, out1 = pos.Collect(req0, req1)

	if p.ledger != nil {
		if !out0.IsZero() {
			if err := p.ledger.Transfer(p.cfg.Token0, recipient, out0); err != nil {
				return nil, nil, wrapErr(ErrInsufficientInputAmount, "collect transfer token0 failed", err)
			}
		}
		if !out1.IsZero() {
			if err := p.ledger.Transfer(p.cfg.Token1, recipient, out1); err != nil {
				return nil, nil, wrapErr(ErrInsufficientInputAmount, "collect transfer token1 failed", err)
			}
		}
	}

	p.emit(ActionCollect, CollectEvent{
		Owner: owner, Recipient: recipient, TickLower: lower, TickUpper: upper,
		Amount0: out0, Amount1: out1,
	})

	return out0, out1, nil
}

// modifyPosition applies liquidityDelta to (owner, lower, upper), updating
// both tick endpoints and the position's fee accrual, and returns the
// token0/token1 amounts the change requires (mint) or frees (burn),
// per spec.md §4.7's three-case range logic. Grounded on the teacher's
// modifyPosition/updatePosition pair.
func (p *CorePool) modifyPosition(owner string, lower, upper int32, liquidityDelta *int128.Int) (amount0, amount1 *uint256.Int, err error) {
	if err := p.checkTicks(lower, upper); err != nil {
		return nil, nil, err
	}

	if liquidityDelta.Sign() < 0 {
		pos := p.positions.Get(owner, lower, upper)
		var have *uint256.Int
		if pos == nil {
			have = new(uint256.Int)
		} else {
			have = pos.Liquidity
		}
		if have.Cmp(liquidityDelta.Abs()) < 0 {
			return nil, nil, newErr(ErrNotEnoughLiquidity, "liquidity underflow")
		}
	}

	amount0, amount1 = new(uint256.Int), new(uint256.Int)

	var flippedLower, flippedUpper bool
	if !liquidityDelta.IsZero() {
		flippedLower, err = p.ticks.Update(lower, p.slot0.Tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128, 0, false, p.maxLiquidityPerTick)
		if err != nil {
			return nil, nil, err
		}
		flippedUpper, err = p.ticks.Update(upper, p.slot0.Tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128, 0, true, p.maxLiquidityPerTick)
		if err != nil {
			return nil, nil, err
		}
	}

	fi0, fi1 := p.ticks.GetFeeGrowthInside(lower, upper, p.slot0.Tick, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)
	pos := p.positions.GetOrCreate(owner, lower, upper)
	if err := pos.Update(liquidityDelta, fi0, fi1); err != nil {
		return nil, nil, err
	}

	if !liquidityDelta.IsZero() {
		sqrtLower, err := tickmath.GetSqrtRatioAtTick(lower)
		if err != nil {
			return nil, nil, err
		}
		sqrtUpper, err := tickmath.GetSqrtRatioAtTick(upper)
		if err != nil {
			return nil, nil, err
		}

		switch {
		case p.slot0.Tick < lower:
			amount0, err = sqrtpricemath.GetAmount0Delta(sqrtLower, sqrtUpper, liquidityDelta.Abs(), liquidityDelta.Sign() > 0)
			if err != nil {
				return nil, nil, err
			}
		case p.slot0.Tick < upper:
			amount0, err = sqrtpricemath.GetAmount0Delta(p.slot0.SqrtPriceX96, sqrtUpper, liquidityDelta.Abs(), liquidityDelta.Sign() > 0)
			if err != nil {
				return nil, nil, err
			}
			amount1, err = sqrtpricemath.GetAmount1Delta(sqrtLower, p.slot0.SqrtPriceX96, liquidityDelta.Abs(), liquidityDelta.Sign() > 0)
			if err != nil {
				return nil, nil, err
			}
			if liquidityDelta.Sign() >= 0 {
				p.liquidity = new(uint256.Int).Add(p.liquidity, liquidityDelta.Abs())
			} else {
				p.liquidity = new(uint256.Int).Sub(p.liquidity, liquidityDelta.Abs())
			}
		default:
			amount1, err = sqrtpricemath.GetAmount1Delta(sqrtLower, sqrtUpper, liquidityDelta.Abs(), liquidityDelta.Sign() > 0)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(lower)
		}
		if flippedUpper {
			p.ticks.Clear(upper)
		}
	}

	return amount0, amount1, nil
}

type swapState struct {
	amountSpecifiedRemaining *uint256.Int
	amountCalculated         *uint256.Int
	sqrtPriceX96             *uint256.Int
	tick                     int32
	liquidity                *uint256.Int
	feeGrowthGlobalX128      *uint256.Int
}

// Swap executes an exact-input swap in the given direction, stepping price
// across initialized ticks until amountSpecified is consumed or
// sqrtPriceLimitX96 is reached, per spec.md §4.7. Returns the signed
// (amount0, amount1): positive owed by the caller, negative owed by the
// pool.
func (p *CorePool) Swap(recipient string, zeroForOne bool, amountSpecified *uint256.Int, sqrtPriceLimitX96 *uint256.Int, cb SwapCallback, data []byte, blockTime uint32) (amount0, amount1 *int128.Int, err error) {
	if err := p.lockForCallback(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	if amountSpecified.IsZero() {
		return nil, nil, newErr(ErrInvalidTickRange, "amountSpecified must be nonzero")
	}

	if zeroForOne {
		if sqrtPriceLimitX96.Cmp(tickmath.MinSqrtRatio) <= 0 || sqrtPriceLimitX96.Cmp(p.slot0.SqrtPriceX96) >= 0 {
			return nil, nil, newErr(ErrInvalidPriceLimit, "price limit out of range for zeroForOne")
		}
	} else {
		if sqrtPriceLimitX96.Cmp(tickmath.MaxSqrtRatio) >= 0 || sqrtPriceLimitX96.Cmp(p.slot0.SqrtPriceX96) <= 0 {
			return nil, nil, newErr(ErrInvalidPriceLimit, "price limit out of range for !zeroForOne")
		}
	}

	startTick := p.slot0.Tick
	state := swapState{
		amountSpecifiedRemaining: amountSpecified.Clone(),
		amountCalculated:         new(uint256.Int),
		sqrtPriceX96:             p.slot0.SqrtPriceX96.Clone(),
		tick:                     p.slot0.Tick,
		liquidity:                p.liquidity.Clone(),
	}
	if zeroForOne {
		state.feeGrowthGlobalX128 = p.feeGrowthGlobal0X128.Clone()
	} else {
		state.feeGrowthGlobalX128 = p.feeGrowthGlobal1X128.Clone()
	}

	logrus.WithFields(logrus.Fields{
		"zeroForOne": zeroForOne, "amountSpecified": amountSpecified.String(),
		"currentPrice": state.sqrtPriceX96.String(), "limitPrice": sqrtPriceLimitX96.String(),
	}).Debug("swap start")

	loopCount := 0
	for !state.amountSpecifiedRemaining.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		loopCount++
		if loopCount > 1000 {
			return nil, nil, newErr(ErrOverflow, "excessive swap loop iterations")
		}

		sqrtPriceStartX96 := state.sqrtPriceX96

		tickNext, initialized, err := p.ticks.NextInitializedTickWithinOneWord(state.tick, zeroForOne)
		if err != nil {
			return nil, nil, wrapErr(ErrOverflow, "bitmap lookup failed", err)
		}
		if tickNext < tickmath.MinTick {
			tickNext = tickmath.MinTick
		} else if tickNext > tickmath.MaxTick {
			tickNext = tickmath.MaxTick
		}

		sqrtPriceNextX96, err := tickmath.GetSqrtRatioAtTick(tickNext)
		if err != nil {
			return nil, nil, err
		}

		var target *uint256.Int
		if zeroForOne {
			if sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) < 0 {
				target = sqrtPriceLimitX96
			} else {
				target = sqrtPriceNextX96
			}
		} else {
			if sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) > 0 {
				target = sqrtPriceLimitX96
			} else {
				target = sqrtPriceNextX96
			}
		}

		step, err := swapmath.ComputeSwapStep(state.sqrtPriceX96, target, state.liquidity, state.amountSpecifiedRemaining, p.cfg.Fee)
		if err != nil {
			return nil, nil, wrapErr(ErrOverflow, "computeSwapStep failed", err)
		}
		state.sqrtPriceX96 = step.SqrtRatioNextX96

		consumed := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
		state.amountSpecifiedRemaining = new(uint256.Int).Sub(state.amountSpecifiedRemaining, consumed)
		state.amountCalculated = new(uint256.Int).Add(state.amountCalculated, step.AmountOut)

		if !state.liquidity.IsZero() {
			feeGrowthDelta, err := fixedpoint.MulDiv(step.FeeAmount, fixedpoint.Q128, state.liquidity)
			if err != nil {
				return nil, nil, wrapErr(ErrOverflow, "fee growth delta overflow", err)
			}
			state.feeGrowthGlobalX128 = new(uint256.Int).Add(state.feeGrowthGlobalX128, feeGrowthDelta)
		}

		if state.sqrtPriceX96.Eq(sqrtPriceNextX96) {
			if initialized {
				var fg0, fg1 *uint256.Int
				if zeroForOne {
					fg0, fg1 = state.feeGrowthGlobalX128, p.feeGrowthGlobal1X128
				} else {
					fg0, fg1 = p.feeGrowthGlobal0X128, state.feeGrowthGlobalX128
				}
				liquidityNet := p.ticks.Cross(tickNext, fg0, fg1, 0)
				if zeroForOne {
					liquidityNet = liquidityNet.Neg()
				}
				newLiquidity, err := addDeltaToLiquidity(state.liquidity, liquidityNet)
				if err != nil {
					return nil, nil, err
				}
				state.liquidity = newLiquidity
			}
			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if !state.sqrtPriceX96.Eq(sqrtPriceStartX96) {
			state.tick, err = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return nil, nil, err
			}
		}

		logrus.WithFields(logrus.Fields{
			"tick": state.tick, "price": state.sqrtPriceX96.String(),
			"amountIn": step.AmountIn.String(), "amountOut": step.AmountOut.String(),
			"feeAmount": step.FeeAmount.String(), "liquidity": state.liquidity.String(),
		}).Trace("swap step")
	}

	if state.tick != startTick {
		newIndex, newCardinality := p.oracle.Write(p.slot0.ObservationIndex, blockTime, startTick, p.slot0.ObservationCardinality, p.slot0.ObservationCardinalityNext)
		p.slot0.ObservationIndex = newIndex
		p.slot0.ObservationCardinality = newCardinality
	}

	p.slot0.SqrtPriceX96 = state.sqrtPriceX96
	p.slot0.Tick = state.tick
	p.liquidity = state.liquidity
	if zeroForOne {
		p.feeGrowthGlobal0X128 = state.feeGrowthGlobalX128
	} else {
		p.feeGrowthGlobal1X128 = state.feeGrowthGlobalX128
	}

	consumedTotal := new(uint256.Int).Sub(amountSpecified, state.amountSpecifiedRemaining)
	var a0, a1 *uint256.Int
	if zeroForOne {
		a0, a1 = consumedTotal, state.amountCalculated
	} else {
		a0, a1 = state.amountCalculated, consumedTotal
	}

	if zeroForOne {
		amount0, err = int128.FromUint256(a0)
		if err == nil {
			amount1, err = int128.NegFromUint256(a1)
		}
	} else {
		amount1, err = int128.FromUint256(a1)
		if err == nil {
			amount0, err = int128.NegFromUint256(a0)
		}
	}
	if err != nil {
		return nil, nil, wrapErr(ErrOverflow, "swap amount exceeds int128 range", err)
	}

	if p.ledger != nil {
		if err := p.settleSwap(recipient, zeroForOne, amount0, amount1, cb, data); err != nil {
			return nil, nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"amount0": amount0.String(), "amount1": amount1.String(),
		"newPrice": state.sqrtPriceX96.String(), "newTick": state.tick,
	}).Debug("swap complete")

	p.emit(ActionSwap, SwapEvent{
		Sender: recipient, Recipient: recipient, Amount0: amount0, Amount1: amount1,
		SqrtPriceX96: state.sqrtPriceX96.Clone(), Liquidity: state.liquidity.Clone(), Tick: state.tick,
	})

	return amount0, amount1, nil
}

// settleSwap transfers the side the pool owes out first, then invokes
// swapCallback and verifies the side owed to the pool was paid, exactly as
// spec.md §4.7's settlement section describes.
func (p *CorePool) settleSwap(recipient string, zeroForOne bool, amount0, amount1 *int128.Int, cb SwapCallback, data []byte) error {
	if zeroForOne {
		if amount1.Sign() < 0 {
			if err := p.ledger.Transfer(p.cfg.Token1, recipient, amount1.Abs()); err != nil {
				return wrapErr(ErrInsufficientInputAmount, "swap payout token1 failed", err)
			}
		}
		before, err := p.ledger.BalanceOf(p.cfg.Token0)
		if err != nil {
			return wrapErr(ErrInsufficientInputAmount, "balanceOf token0 failed", err)
		}
		if cb != nil {
			if err := cb.SwapCallback(amount0, amount1, data); err != nil {
				return wrapErr(ErrInsufficientInputAmount, "swapCallback failed", err)
			}
		}
		after, err := p.ledger.BalanceOf(p.cfg.Token0)
		if err != nil {
			return wrapErr(ErrInsufficientInputAmount, "balanceOf token0 failed", err)
		}
		want := new(uint256.Int).Add(before, amount0.Abs())
		if after.Cmp(want) < 0 {
			return newErr(ErrInsufficientInputAmount, "token0 underpaid on swap")
		}
		return nil
	}

	if amount0.Sign() < 0 {
		if err := p.ledger.Transfer(p.cfg.Token0, recipient, amount0.Abs()); err != nil {
			return wrapErr(ErrInsufficientInputAmount, "swap payout token0 failed", err)
		}
	}
	before, err := p.ledger.BalanceOf(p.cfg.Token1)
	if err != nil {
		return wrapErr(ErrInsufficientInputAmount, "balanceOf token1 failed", err)
	}
	if cb != nil {
		if err := cb.SwapCallback(amount0, amount1, data); err != nil {
			return wrapErr(ErrInsufficientInputAmount, "swapCallback failed", err)
		}
	}
	after, err := p.ledger.BalanceOf(p.cfg.Token1)
	if err != nil {
		return wrapErr(ErrInsufficientInputAmount, "balanceOf token1 failed", err)
	}
	want := new(uint256.Int).Add(before, amount1.Abs())
	if after.Cmp(want) < 0 {
		return newErr(ErrInsufficientInputAmount, "token1 underpaid on swap")
	}
	return nil
}

// addDeltaToLiquidity applies a signed liquidityNet to an unsigned pool
// liquidity counter, failing NotEnoughLiquidity on underflow.
func addDeltaToLiquidity(liquidity *uint256.Int, delta *int128.Int) (*uint256.Int, error) {
	if delta.Sign() >= 0 {
		return new(uint256.Int).Add(liquidity, delta.Abs()), nil
	}
	if liquidity.Cmp(delta.Abs()) < 0 {
		return nil, newErr(ErrNotEnoughLiquidity, "liquidity would underflow crossing tick")
	}
	return new(uint256.Int).Sub(liquidity, delta.Abs()), nil
}

// Flash lends amount0/amount1 to the caller, invoking flashCallback and
// requiring repayment of principal plus a fee proportional to the pool's
// fee tier. Per the open question recorded in DESIGN.md, this
// implementation does NOT add the collected fees to feeGrowthGlobal,
// matching the teacher-derived source behavior rather than silently
// "fixing" it.
func (p *CorePool) Flash(recipient string, amount0, amount1 *uint256.Int, cb FlashCallback, data []byte) (fee0, fee1 *uint256.Int, err error) {
	if err := p.lockForCallback(); err != nil {
		return nil, nil, err
	}
	defer p.mu.Unlock()

	feeDenom := uint256.NewInt(1_000_000)
	fee := uint256.NewInt(uint64(p.cfg.Fee))
	fee0, err = fixedpoint.MulDivRoundingUp(amount0, fee, feeDenom)
	if err != nil {
		return nil, nil, wrapErr(ErrOverflow, "fee0 computation overflow", err)
	}
	fee1, err = fixedpoint.MulDivRoundingUp(amount1, fee, feeDenom)
	if err != nil {
		return nil, nil, wrapErr(ErrOverflow, "fee1 computation overflow", err)
	}

	if p.ledger == nil {
		p.emit(ActionFlash, FlashEvent{Sender: recipient, Recipient: recipient, Amount0: amount0, Amount1: amount1, Fee0: fee0, Fee1: fee1})
		return fee0, fee1, nil
	}

	var before0, before1 *uint256.Int
	if !amount0.IsZero() {
		before0, err = p.ledger.BalanceOf(p.cfg.Token0)
		if err != nil {
			return nil, nil, wrapErr(ErrFlashLoanNotPaid, "balanceOf token0 failed", err)
		}
		if err := p.ledger.Transfer(p.cfg.Token0, recipient, amount0); err != nil {
			return nil, nil, wrapErr(ErrFlashLoanNotPaid, "flash payout token0 failed", err)
		}
	}
	if !amount1.IsZero() {
		before1, err = p.ledger.BalanceOf(p.cfg.Token1)
		if err != nil {
			return nil, nil, wrapErr(ErrFlashLoanNotPaid, "balanceOf token1 failed", err)
		}
		if err := p.ledger.Transfer(p.cfg.Token1, recipient, amount1); err != nil {
			return nil, nil, wrapErr(ErrFlashLoanNotPaid, "flash payout token1 failed", err)
		}
	}

	if cb != nil {
		if err := cb.FlashCallback(fee0, fee1, data); err != nil {
			return nil, nil, wrapErr(ErrFlashLoanNotPaid, "flashCallback failed", err)
		}
	}

	if !amount0.IsZero() {
		after0, err := p.ledger.BalanceOf(p.cfg.Token0)
		if err != nil {
			return nil, nil, wrapErr(ErrFlashLoanNotPaid, "balanceOf token0 failed", err)
		}
		want := new(uint256.Int).Add(before0, fee0)
		if after0.Cmp(want) < 0 {
			return nil, nil, newErr(ErrFlashLoanNotPaid, "token0 principal+fee not repaid")
		}
	}
	if !amount1.IsZero() {
		after1, err := p.ledger.BalanceOf(p.cfg.Token1)
		if err != nil {
			return nil, nil, wrapErr(ErrFlashLoanNotPaid, "balanceOf token1 failed", err)
		}
		want := new(uint256.Int).Add(before1, fee1)
		if after1.Cmp(want) < 0 {
			return nil, nil, newErr(ErrFlashLoanNotPaid, "token1 principal+fee not repaid")
		}
	}

	p.emit(ActionFlash, FlashEvent{Sender: recipient, Recipient: recipient, Amount0: amount0, Amount1: amount1, Fee0: fee0, Fee1: fee1})

	return fee0, fee1, nil
}

// IncreaseObservationCardinalityNext grows the oracle's target cardinality,
// updating slot0 if it actually increased.
func (p *CorePool) IncreaseObservationCardinalityNext(next uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.slot0.ObservationCardinalityNext
	grown := p.oracle.Grow(old, next)
	if grown > old {
		p.slot0.ObservationCardinalityNext = grown
		p.emit(ActionIncreaseObservationCardinalityNext, IncreaseObservationCardinalityNextEvent{
			ObservationCardinalityNextOld: old, ObservationCardinalityNextNew: grown,
		})
	}
}

// Observe returns tickCumulative values for each entry in secondsAgos.
func (p *CorePool) Observe(time uint32, secondsAgos []uint32) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oracle.Observe(time, secondsAgos, p.slot0.Tick, p.slot0.ObservationIndex, p.slot0.ObservationCardinality)
}
