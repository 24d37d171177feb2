package pool

import (
	"testing"

	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestPositionUpdateAccruesFeesBeforeMutatingLiquidity(t *testing.T) {
	table := NewPositionTable()
	pos := table.GetOrCreate("alice", -60, 60)

	delta, err := int128.FromUint256(uint256.NewInt(1_000_000))
	require.NoError(t, err)
	require.NoError(t, pos.Update(delta, new(uint256.Int), new(uint256.Int)))
	require.True(t, pos.Liquidity.Eq(uint256.NewInt(1_000_000)))
	require.True(t, pos.TokensOwed0.IsZero())

	fgInside0 := new(uint256.Int).Lsh(uint256.NewInt(1), 128) // 1 * Q128
	fgInside1 := new(uint256.Int).Lsh(uint256.NewInt(2), 128)
	require.NoError(t, pos.Update(int128.Zero(), fgInside0, fgInside1))

	// liquidity=1e6, delta fgInside0=1*Q128 => owed0 = 1e6*1 = 1e6
	require.True(t, pos.TokensOwed0.Eq(uint256.NewInt(1_000_000)))
	require.True(t, pos.TokensOwed1.Eq(uint256.NewInt(2_000_000)))
	require.True(t, pos.Liquidity.Eq(uint256.NewInt(1_000_000)))
}

func TestPositionUpdateRejectsBurnExceedingLiquidity(t *testing.T) {
	table := NewPositionTable()
	pos := table.GetOrCreate("alice", -60, 60)
	delta, err := int128.FromUint256(uint256.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, pos.Update(delta, new(uint256.Int), new(uint256.Int)))

	tooMuch, err := int128.FromUint256(uint256.NewInt(200))
	require.NoError(t, err)
	err = pos.Update(tooMuch.Neg(), new(uint256.Int), new(uint256.Int))
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrNotEnoughLiquidity, perr.Kind)
}

func TestPositionCollectCapsByTokensOwed(t *testing.T) {
	table := NewPositionTable()
	pos := table.GetOrCreate("alice", -60, 60)
	pos.TokensOwed0 = uint256.NewInt(50)
	pos.TokensOwed1 = uint256.NewInt(10)

	out0, out1 := pos.Collect(uint256.NewInt(1000), uint256.NewInt(1000))
	require.True(t, out0.Eq(uint256.NewInt(50)))
	require.True(t, out1.Eq(uint256.NewInt(10)))
	require.True(t, pos.TokensOwed0.IsZero())
	require.True(t, pos.TokensOwed1.IsZero())
}

func TestPositionKeyDistinguishesRanges(t *testing.T) {
	k1 := NewPositionKey("alice", -60, 60)
	k2 := NewPositionKey("alice", -120, 60)
	k3 := NewPositionKey("bob", -60, 60)
	require.NotEqual(t, k1, k2)
	require.NotEqual(t, k1, k3)
	require.Equal(t, k1, NewPositionKey("alice", -60, 60))
}
