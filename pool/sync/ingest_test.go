package sync

import (
	"math/big"
	"testing"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/coinsummer/clpool/pool"
)

func newIngestTestPool(t *testing.T) *pool.CorePool {
	t.Helper()
	p := pool.NewCorePool(pool.Config{Token0: "t0", Token1: "t1", Fee: 3000, TickSpacing: 60}, nil)
	require.NoError(t, p.Initialize(fixedpoint.Q96.Clone(), 1))
	return p
}

func TestIngestorProcessMintRegistersPositionWithFeeSnapshot(t *testing.T) {
	p := newIngestTestPool(t)
	poolAddr := "0x0000000000000000000000000000000000000002"
	ig := NewIngestor(nil, common.Address{}, map[string]*pool.CorePool{poolAddr: p})

	owner := common.HexToAddress("0x00000000000000000000000000000000000001")
	poolAddress := common.HexToAddress(poolAddr)

	var data []byte
	data = append(data, addressWord(owner)...)
	data = append(data, signedWord(-60)...)
	data = append(data, signedWord(60)...)
	data = append(data, addressWord(poolAddress)...)
	data = append(data, uintWord(1000)...)

	log := &types.Log{
		Topics: []common.Hash{MintSig, common.BigToHash(big.NewInt(1))},
		Data:   data,
	}

	require.NoError(t, ig.processEvent(log))

	tok, ok := ig.Manager().GetPosition(1)
	require.True(t, ok)
	require.Equal(t, poolAddr, tok.Pool)
	require.True(t, tok.FeeGrowthInside0LastX128.IsZero())
}

func TestIngestorProcessTransferSkipsMintBurn(t *testing.T) {
	p := newIngestTestPool(t)
	poolAddr := "0x0000000000000000000000000000000000000002"
	ig := NewIngestor(nil, common.Address{}, map[string]*pool.CorePool{poolAddr: p})
	require.NoError(t, ig.Manager().HandleMint(1, "0xalice", poolAddr, -60, 60, uint256.NewInt(100), new(uint256.Int), new(uint256.Int)))

	log := &types.Log{
		Topics: []common.Hash{
			TransferSig,
			common.Hash{}, // from = zero address
			common.BytesToHash(common.HexToAddress("0xalice000000000000000000000000000000001").Bytes()),
			common.BigToHash(big.NewInt(1)),
		},
	}
	require.NoError(t, ig.processEvent(log))

	tok, ok := ig.Manager().GetPosition(1)
	require.True(t, ok)
	require.Equal(t, "0xalice", tok.Owner) // unchanged: mint transfer was skipped
}

func TestIngestorProcessEventRejectsUnknownTopic(t *testing.T) {
	ig := NewIngestor(nil, common.Address{}, map[string]*pool.CorePool{})
	log := &types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}}
	err := ig.processEvent(log)
	require.Error(t, err)
}
