package pool

import (
	"sort"

	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/coinsummer/clpool/internal/math/tickbitmap"
	"github.com/coinsummer/clpool/internal/math/tickmath"
	"github.com/holiman/uint256"
)

// TickInfo is the per-tick state the teacher's Tick type carried
// (liquidityGross, liquidityNet, the two feeGrowthOutside accumulators) plus
// the cumulative-tick-outside snapshot spec.md adds for the oracle.
type TickInfo struct {
	LiquidityGross        *uint256.Int
	LiquidityNet          *int128.Int
	FeeGrowthOutside0X128 *uint256.Int
	FeeGrowthOutside1X128 *uint256.Int
	TickCumulativeOutside int64
	Initialized           bool
}

func newTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityGross:        new(uint256.Int),
		LiquidityNet:          int128.Zero(),
		FeeGrowthOutside0X128: new(uint256.Int),
		FeeGrowthOutside1X128: new(uint256.Int),
	}
}

// TickTable is the flat map of touched ticks, paired with the bitmap that
// indexes which of them are currently initialized. Grounded on the
// teacher's TickManager (inferred from pool.go's call sites:
// GetTickAndInitIfAbsent, GetNextInitializedTick), generalized onto the
// uint256/int128 representation the rest of this engine uses.
type TickTable struct {
	ticks       map[int32]*TickInfo
	bitmap      *tickbitmap.Bitmap
	tickSpacing int32
}

// NewTickTable returns an empty tick table for the given tick spacing.
func NewTickTable(tickSpacing int32) *TickTable {
	return &TickTable{
		ticks:       make(map[int32]*TickInfo),
		bitmap:      tickbitmap.New(),
		tickSpacing: tickSpacing,
	}
}

// Get returns the tick's info, or nil if untouched.
func (t *TickTable) Get(tick int32) *TickInfo {
	return t.ticks[tick]
}

// MaxLiquidityPerTick returns the cap on liquidityGross any single tick may
// hold: the full 128-bit liquidity range divided across every spacing-
// aligned tick, so that the sum of every position's liquidity can never
// overflow a single tick's gross counter.
func MaxLiquidityPerTick(tickSpacing int32) *uint256.Int {
	minTick := (tickmath.MinTick / tickSpacing) * tickSpacing
	maxTick := (tickmath.MaxTick / tickSpacing) * tickSpacing
	numTicks := (maxTick-minTick)/tickSpacing + 1
	maxU128 := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	return new(uint256.Int).Div(maxU128, uint256.NewInt(uint64(numTicks)))
}

// Update applies liquidityDelta to the tick at the given index, returning
// whether the tick's initialized state flipped. Grounded on spec.md §4.4 and
// on the teacher's tick.Update(delta, tickCurrent, fg0, fg1, upper,
// maxLiquidityPerTick) call site in pool.go's modifyPosition.
func (t *TickTable) Update(
	tick int32,
	tickCurrent int32,
	liquidityDelta *int128.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	tickCumulative int64,
	upper bool,
	maxLiquidityPerTick *uint256.Int,
) (flipped bool, err error) {
	info := t.ticks[tick]
	if info == nil {
		info = newTickInfo()
		t.ticks[tick] = info
	}

	grossBefore := info.LiquidityGross.Clone()
	var grossAfter *uint256.Int
	if liquidityDelta.Sign() >= 0 {
		grossAfter = new(uint256.Int).Add(grossBefore, liquidityDelta.Abs())
	} else {
		if grossBefore.Cmp(liquidityDelta.Abs()) < 0 {
			return false, newErr(ErrOverflow, "liquidityGross underflow")
		}
		grossAfter = new(uint256.Int).Sub(grossBefore, liquidityDelta.Abs())
	}
	if grossAfter.Cmp(maxLiquidityPerTick) > 0 {
		return false, newErr(ErrOverflow, "liquidityGross exceeds max per tick")
	}

	flipped = grossBefore.IsZero() != grossAfter.IsZero()

	if grossBefore.IsZero() && !grossAfter.IsZero() {
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128 = feeGrowthGlobal0X128.Clone()
			info.FeeGrowthOutside1X128 = feeGrowthGlobal1X128.Clone()
			info.TickCumulativeOutside = tickCumulative
		}
		info.Initialized = true
	}
	if !grossBefore.IsZero() && grossAfter.IsZero() {
		info.Initialized = false
	}

	info.LiquidityGross = grossAfter

	var netDelta *int128.Int
	if upper {
		netDelta = liquidityDelta.Neg()
	} else {
		netDelta = liquidityDelta
	}
	newNet, err := info.LiquidityNet.Add(netDelta)
	if err != nil {
		return false, wrapErr(ErrOverflow, "liquidityNet overflow", err)
	}
	info.LiquidityNet = newNet

	if flipped {
		if err := t.bitmap.FlipTick(tick, t.tickSpacing); err != nil {
			return false, wrapErr(ErrOverflow, "bitmap flip failed", err)
		}
	}

	return flipped, nil
}

// Cross flips the tick's outside accumulators to global-minus-outside and
// returns its liquidityNet, exactly mirroring the teacher's
// tick.Cross(feeGrowthGlobal0X128, feeGrowthGlobal1X128) call site.
func (t *TickTable) Cross(tick int32, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int, tickCumulative int64) *int128.Int {
	info := t.ticks[tick]
	if info == nil {
		return int128.Zero()
	}
	info.FeeGrowthOutside0X128 = new(uint256.Int).Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128 = new(uint256.Int).Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	info.TickCumulativeOutside = tickCumulative - info.TickCumulativeOutside
	return info.LiquidityNet
}

// Clear removes a tick's bookkeeping once liquidityGross returns to zero, as
// spec.md §3's lifecycle rule requires: fee-growth-outside snapshots must
// not persist after clearing. The bitmap bit is cleared separately by
// Update's flip, which already ran before Clear is called here.
func (t *TickTable) Clear(tick int32) {
	delete(t.ticks, tick)
}

// IsInitialized reports whether tick's bit is set in the bitmap.
func (t *TickTable) IsInitialized(tick int32) (bool, error) {
	return t.bitmap.IsInitialized(tick, t.tickSpacing)
}

// NextInitializedTickWithinOneWord delegates to the underlying bitmap.
func (t *TickTable) NextInitializedTickWithinOneWord(tick int32, lte bool) (int32, bool, error) {
	return t.bitmap.NextInitializedTickWithinOneWord(tick, t.tickSpacing, lte)
}

// TickSnapshot is a serializable copy of one tick's bookkeeping, used by
// pool/store to persist a TickTable without coupling this package to any
// particular encoding.
type TickSnapshot struct {
	Tick                  int32
	LiquidityGross        string
	LiquidityNet          string
	FeeGrowthOutside0X128 string
	FeeGrowthOutside1X128 string
	TickCumulativeOutside int64
	Initialized           bool
}

// Snapshot returns every touched tick as a TickSnapshot, sorted by tick.
func (t *TickTable) Snapshot() []TickSnapshot {
	out := make([]TickSnapshot, 0, len(t.ticks))
	for tick, info := range t.ticks {
		out = append(out, TickSnapshot{
			Tick:                  tick,
			LiquidityGross:        info.LiquidityGross.String(),
			LiquidityNet:          info.LiquidityNet.String(),
			FeeGrowthOutside0X128: info.FeeGrowthOutside0X128.String(),
			FeeGrowthOutside1X128: info.FeeGrowthOutside1X128.String(),
			TickCumulativeOutside: info.TickCumulativeOutside,
			Initialized:           info.Initialized,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out
}

// LoadSnapshot repopulates the table from a prior Snapshot, flipping the
// bitmap bit for every tick recorded as initialized.
func (t *TickTable) LoadSnapshot(snaps []TickSnapshot) error {
	for _, s := range snaps {
		gross, err := uint256.FromDecimal(s.LiquidityGross)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid liquidityGross in snapshot", err)
		}
		net, err := int128.FromDecimalString(s.LiquidityNet)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid liquidityNet in snapshot", err)
		}
		fg0, err := uint256.FromDecimal(s.FeeGrowthOutside0X128)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid feeGrowthOutside0 in snapshot", err)
		}
		fg1, err := uint256.FromDecimal(s.FeeGrowthOutside1X128)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid feeGrowthOutside1 in snapshot", err)
		}
		t.ticks[s.Tick] = &TickInfo{
			LiquidityGross:        gross,
			LiquidityNet:          net,
			FeeGrowthOutside0X128: fg0,
			FeeGrowthOutside1X128: fg1,
			TickCumulativeOutside: s.TickCumulativeOutside,
			Initialized:           s.Initialized,
		}
		if s.Initialized {
			if err := t.bitmap.FlipTick(s.Tick, t.tickSpacing); err != nil {
				return wrapErr(ErrOverflow, "bitmap flip failed restoring snapshot", err)
			}
		}
	}
	return nil
}

// GetFeeGrowthInside computes the fee growth accrued inside [lower, upper)
// as of the current tick, per spec.md §4.4's three-case formula.
func (t *TickTable) GetFeeGrowthInside(lower, upper, tickCurrent int32, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) (fgInside0, fgInside1 *uint256.Int) {
	lowerInfo := t.ticks[lower]
	upperInfo := t.ticks[upper]

	var feeGrowthBelow0, feeGrowthBelow1 *uint256.Int
	if lowerInfo == nil {
		feeGrowthBelow0, feeGrowthBelow1 = new(uint256.Int), new(uint256.Int)
	} else if tickCurrent >= lower {
		feeGrowthBelow0, feeGrowthBelow1 = lowerInfo.FeeGrowthOutside0X128, lowerInfo.FeeGrowthOutside1X128
	} else {
		feeGrowthBelow0 = new(uint256.Int).Sub(feeGrowthGlobal0X128, lowerInfo.FeeGrowthOutside0X128)
		feeGrowthBelow1 = new(uint256.Int).Sub(feeGrowthGlobal1X128, lowerInfo.FeeGrowthOutside1X128)
	}

	var feeGrowthAbove0, feeGrowthAbove1 *uint256.Int
	if upperInfo == nil {
		feeGrowthAbove0, feeGrowthAbove1 = new(uint256.Int), new(uint256.Int)
	} else if tickCurrent < upper {
		feeGrowthAbove0, feeGrowthAbove1 = upperInfo.FeeGrowthOutside0X128, upperInfo.FeeGrowthOutside1X128
	} else {
		feeGrowthAbove0 = new(uint256.Int).Sub(feeGrowthGlobal0X128, upperInfo.FeeGrowthOutside0X128)
		feeGrowthAbove1 = new(uint256.Int).Sub(feeGrowthGlobal1X128, upperInfo.FeeGrowthOutside1X128)
	}

	fgInside0 = new(uint256.Int).Sub(new(uint256.Int).Sub(feeGrowthGlobal0X128, feeGrowthBelow0), feeGrowthAbove0)
	fgInside1 = new(uint256.Int).Sub(new(uint256.Int).Sub(feeGrowthGlobal1X128, feeGrowthBelow1), feeGrowthAbove1)
	return fgInside0, fgInside1
}
