package sync

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// twoToThe256 is the modulus used to interpret a 32-byte ABI word as a
// signed two's-complement integer (ticks are int24, sign-extended to a
// full word by the EVM ABI encoder).
var twoToThe256 = new(big.Int).Lsh(big.NewInt(1), 256)

func decodeSignedWord(word []byte) int32 {
	v := new(big.Int).SetBytes(word)
	if v.Bit(255) == 1 {
		v.Sub(v, twoToThe256)
	}
	return int32(v.Int64())
}

// MintLogEvent is the NonfungiblePositionManager Mint event:
// Mint(tokenId, owner, tickLower, tickUpper, pool, amount).
type MintLogEvent struct {
	RawEvent  *types.Log
	TokenID   uint64
	Owner     string
	TickLower int32
	TickUpper int32
	Amount    *uint256.Int
	Pool      string
}

// IncreaseLiquidityLogEvent is IncreaseLiquidity(tokenId, liquidity, amount0, amount1).
type IncreaseLiquidityLogEvent struct {
	RawEvent  *types.Log
	TokenID   uint64
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// DecreaseLiquidityLogEvent is DecreaseLiquidity(tokenId, liquidity, amount0, amount1).
type DecreaseLiquidityLogEvent struct {
	RawEvent  *types.Log
	TokenID   uint64
	Liquidity *uint256.Int
	Amount0   *uint256.Int
	Amount1   *uint256.Int
}

// CollectLogEvent is Collect(tokenId, amount0, amount1).
type CollectLogEvent struct {
	RawEvent *types.Log
	TokenID  uint64
	Amount0  *uint256.Int
	Amount1  *uint256.Int
}

// TransferLogEvent is Transfer(from, to, tokenId).
type TransferLogEvent struct {
	RawEvent *types.Log
	TokenID  uint64
	From     string
	To       string
}

// Event signature hashes for the NonfungiblePositionManager topics this
// package ingests.
var (
	MintSig              = common.HexToHash("0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde")
	IncreaseLiquiditySig = common.HexToHash("0x3067048beee31b25b2f1681f88dac838c8bba36af25bfb2b7cf7473a5847e35f")
	DecreaseLiquiditySig = common.HexToHash("0x26f6a048ee9138f2c0ce266f322cb99228e8d619ae2bff30c67f8dcf9d2377b4")
	CollectSig           = common.HexToHash("0x40d0efd1a53d60ecbf40971b9daf7dc90178c3aadc7aab1765632738fa8b8f01")
	TransferSig          = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
)

// parseMintLogEvent parses a Mint log.
func parseMintLogEvent(log *types.Log) (*MintLogEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for Mint event")
	}
	data := log.Data
	if len(data) < 160 {
		return nil, fmt.Errorf("short data for Mint event")
	}

	tokenID := new(uint256.Int).SetBytes(log.Topics[1].Bytes()).Uint64()
	owner := common.BytesToAddress(data[:32])
	tickLower := decodeSignedWord(data[32:64])
	tickUpper := decodeSignedWord(data[64:96])
	pool := common.BytesToAddress(data[96:128])
	amount := new(uint256.Int).SetBytes(data[128:160])

	return &MintLogEvent{
		RawEvent:  log,
		TokenID:   tokenID,
		Owner:     strings.ToLower(owner.Hex()),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount,
		Pool:      strings.ToLower(pool.Hex()),
	}, nil
}

// parseIncreaseLiquidityLogEvent parses an IncreaseLiquidity log.
func parseIncreaseLiquidityLogEvent(log *types.Log) (*IncreaseLiquidityLogEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for IncreaseLiquidity event")
	}
	data := log.Data
	if len(data) < 96 {
		return nil, fmt.Errorf("short data for IncreaseLiquidity event")
	}

	tokenID := new(uint256.Int).SetBytes(log.Topics[1].Bytes()).Uint64()
	liquidity := new(uint256.Int).SetBytes(data[:32])
	amount0 := new(uint256.Int).SetBytes(data[32:64])
	amount1 := new(uint256.Int).SetBytes(data[64:96])

	return &IncreaseLiquidityLogEvent{
		RawEvent: log, TokenID: tokenID,
		Liquidity: liquidity, Amount0: amount0, Amount1: amount1,
	}, nil
}

// parseDecreaseLiquidityLogEvent parses a DecreaseLiquidity log.
func parseDecreaseLiquidityLogEvent(log *types.Log) (*DecreaseLiquidityLogEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for DecreaseLiquidity event")
	}
	data := log.Data
	if len(data) < 96 {
		return nil, fmt.Errorf("short data for DecreaseLiquidity event")
	}

	tokenID := new(uint256.Int).SetBytes(log.Topics[1].Bytes()).Uint64()
	liquidity := new(uint256.Int).SetBytes(data[:32])
	amount0 := new(uint256.Int).SetBytes(data[32:64])
	amount1 := new(uint256.Int).SetBytes(data[64:96])

	return &DecreaseLiquidityLogEvent{
		RawEvent: log, TokenID: tokenID,
		Liquidity: liquidity, Amount0: amount0, Amount1: amount1,
	}, nil
}

// parseCollectLogEvent parses a Collect log.
func parseCollectLogEvent(log *types.Log) (*CollectLogEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("not enough topics for Collect event")
	}
	data := log.Data
	if len(data) < 64 {
		return nil, fmt.Errorf("short data for Collect event")
	}

	tokenID := new(uint256.Int).SetBytes(log.Topics[1].Bytes()).Uint64()
	amount0 := new(uint256.Int).SetBytes(data[:32])
	amount1 := new(uint256.Int).SetBytes(data[32:64])

	return &CollectLogEvent{RawEvent: log, TokenID: tokenID, Amount0: amount0, Amount1: amount1}, nil
}

// parseTransferLogEvent parses a Transfer log.
func parseTransferLogEvent(log *types.Log) (*TransferLogEvent, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("not enough topics for Transfer event")
	}
	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())
	tokenID := new(uint256.Int).SetBytes(log.Topics[3].Bytes()).Uint64()

	return &TransferLogEvent{
		RawEvent: log,
		TokenID:  tokenID,
		From:     strings.ToLower(from.Hex()),
		To:       strings.ToLower(to.Hex()),
	}, nil
}
