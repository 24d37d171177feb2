package pool

import (
	"testing"

	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestTickUpdateFlipsOnFirstTouch(t *testing.T) {
	table := NewTickTable(60)
	maxPerTick := MaxLiquidityPerTick(60)
	delta, err := int128.FromUint256(uint256.NewInt(1_000_000))
	require.NoError(t, err)

	flipped, err := table.Update(60, 0, delta, new(uint256.Int), new(uint256.Int), 0, false, maxPerTick)
	require.NoError(t, err)
	require.True(t, flipped)

	init, err := table.IsInitialized(60)
	require.NoError(t, err)
	require.True(t, init)

	info := table.Get(60)
	require.True(t, info.LiquidityGross.Eq(uint256.NewInt(1_000_000)))
}

func TestTickUpdateDoesNotFlipOnSecondTouch(t *testing.T) {
	table := NewTickTable(60)
	maxPerTick := MaxLiquidityPerTick(60)
	delta, err := int128.FromUint256(uint256.NewInt(1_000_000))
	require.NoError(t, err)

	_, err = table.Update(60, 0, delta, new(uint256.Int), new(uint256.Int), 0, false, maxPerTick)
	require.NoError(t, err)
	flipped, err := table.Update(60, 0, delta, new(uint256.Int), new(uint256.Int), 0, false, maxPerTick)
	require.NoError(t, err)
	require.False(t, flipped)
}

func TestTickUpdateDoesNotClearOnReturnToZero(t *testing.T) {
	table := NewTickTable(60)
	maxPerTick := MaxLiquidityPerTick(60)
	delta, err := int128.FromUint256(uint256.NewInt(1_000_000))
	require.NoError(t, err)

	flipped, err := table.Update(60, 0, delta, new(uint256.Int), new(uint256.Int), 0, false, maxPerTick)
	require.NoError(t, err)
	require.True(t, flipped)

	flipped, err = table.Update(60, 0, delta.Neg(), new(uint256.Int), new(uint256.Int), 0, false, maxPerTick)
	require.NoError(t, err)
	require.True(t, flipped)

	// Update itself never deletes tick bookkeeping: the caller (modifyPosition)
	// clears a flipped tick only after it has read fee-growth-inside off of
	// it, so the entry must still be here, just uninitialized.
	init, err := table.IsInitialized(60)
	require.NoError(t, err)
	require.False(t, init)
	require.NotNil(t, table.Get(60))

	table.Clear(60)
	require.Nil(t, table.Get(60))
}

func TestTickCrossFlipsOutsideToGlobalMinusOutside(t *testing.T) {
	table := NewTickTable(60)
	maxPerTick := MaxLiquidityPerTick(60)
	delta, err := int128.FromUint256(uint256.NewInt(1_000_000))
	require.NoError(t, err)

	fg0Before := uint256.NewInt(100)
	fg1Before := uint256.NewInt(200)
	_, err = table.Update(60, 60, delta, fg0Before, fg1Before, 0, false, maxPerTick)
	require.NoError(t, err)

	fg0Global := uint256.NewInt(500)
	fg1Global := uint256.NewInt(900)
	net := table.Cross(60, fg0Global, fg1Global, 42)
	require.True(t, net.Eq(delta))

	info := table.Get(60)
	require.True(t, info.FeeGrowthOutside0X128.Eq(new(uint256.Int).Sub(fg0Global, fg0Before)))
	require.True(t, info.FeeGrowthOutside1X128.Eq(new(uint256.Int).Sub(fg1Global, fg1Before)))
}

func TestGetFeeGrowthInsideWhenCurrentInRange(t *testing.T) {
	table := NewTickTable(60)
	maxPerTick := MaxLiquidityPerTick(60)
	delta, err := int128.FromUint256(uint256.NewInt(1_000_000))
	require.NoError(t, err)

	fgGlobal0 := uint256.NewInt(1000)
	fgGlobal1 := uint256.NewInt(2000)

	_, err = table.Update(-60, 0, delta, fgGlobal0, fgGlobal1, 0, false, maxPerTick)
	require.NoError(t, err)
	_, err = table.Update(60, 0, delta, fgGlobal0, fgGlobal1, 0, true, maxPerTick)
	require.NoError(t, err)

	// The lower tick (at or below the current tick) snapshots the pre-existing
	// global fee growth as "outside" and the upper tick starts at zero, so
	// nothing has accrued inside this brand-new range yet.
	fi0, fi1 := table.GetFeeGrowthInside(-60, 60, 0, fgGlobal0, fgGlobal1)
	require.True(t, fi0.IsZero())
	require.True(t, fi1.IsZero())

	// After more fee accrues globally, that delta now shows up as inside.
	fgGlobal0Later := uint256.NewInt(1500)
	fgGlobal1Later := uint256.NewInt(2800)
	fi0, fi1 = table.GetFeeGrowthInside(-60, 60, 0, fgGlobal0Later, fgGlobal1Later)
	require.True(t, fi0.Eq(uint256.NewInt(500)))
	require.True(t, fi1.Eq(uint256.NewInt(800)))
}
