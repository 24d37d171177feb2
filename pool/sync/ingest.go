package sync

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/coinsummer/clpool/pool"
)

var zeroAddressHex = common.HexToAddress("0x0000000000000000000000000000000000000000").Hex()

// Ingestor pulls NonfungiblePositionManager events for a fixed set of pools
// from a chain RPC endpoint and replays them onto a PositionTokenManager,
// keeping each mirrored token's fee-growth-inside snapshot consistent with
// the pool it belongs to. Grounded on the teacher's NFTPositionSimulator.
type Ingestor struct {
	client     *ethclient.Client
	nftAddress common.Address
	pools      map[string]*pool.CorePool
	manager    *PositionTokenManager
}

// NewIngestor constructs an Ingestor watching nftAddress for position events
// against the given pools, keyed by lowercased pool address.
func NewIngestor(client *ethclient.Client, nftAddress common.Address, pools map[string]*pool.CorePool) *Ingestor {
	return &Ingestor{
		client:     client,
		nftAddress: nftAddress,
		pools:      pools,
		manager:    NewPositionTokenManager(),
	}
}

// Manager returns the ingestor's position-token mirror.
func (ig *Ingestor) Manager() *PositionTokenManager {
	return ig.manager
}

func (ig *Ingestor) getPool(addr string) (*pool.CorePool, error) {
	p, ok := ig.pools[addr]
	if !ok {
		return nil, fmt.Errorf("pool not found: %s", addr)
	}
	return p, nil
}

// SyncEvents fetches and replays every position event in [startBlock,
// endBlock] for this ingestor's NFT manager address, in log order.
func (ig *Ingestor) SyncEvents(ctx context.Context, startBlock, endBlock uint64) error {
	logs, err := ig.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(startBlock),
		ToBlock:   new(big.Int).SetUint64(endBlock),
		Addresses: []common.Address{ig.nftAddress},
		Topics: [][]common.Hash{{
			MintSig, IncreaseLiquiditySig, DecreaseLiquiditySig, CollectSig, TransferSig,
		}},
	})
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}

	for i := range logs {
		if err := ig.processEvent(&logs[i]); err != nil {
			logrus.WithError(err).Warn("failed to process position event")
		}
	}
	return nil
}

func (ig *Ingestor) processEvent(log *types.Log) error {
	if len(log.Topics) == 0 {
		return fmt.Errorf("log has no topics")
	}
	switch log.Topics[0] {
	case MintSig:
		return ig.processMint(log)
	case IncreaseLiquiditySig:
		return ig.processIncreaseLiquidity(log)
	case DecreaseLiquiditySig:
		return ig.processDecreaseLiquidity(log)
	case CollectSig:
		return ig.processCollect(log)
	case TransferSig:
		return ig.processTransfer(log)
	default:
		return fmt.Errorf("unknown event topic: %s", log.Topics[0].Hex())
	}
}

func (ig *Ingestor) processMint(log *types.Log) error {
	event, err := parseMintLogEvent(log)
	if err != nil {
		return fmt.Errorf("parse mint event: %w", err)
	}
	p, err := ig.getPool(event.Pool)
	if err != nil {
		return err
	}
	fi0, fi1 := p.FeeGrowthInside(event.TickLower, event.TickUpper)
	return ig.manager.HandleMint(event.TokenID, event.Owner, event.Pool, event.TickLower, event.TickUpper, event.Amount, fi0, fi1)
}

func (ig *Ingestor) processIncreaseLiquidity(log *types.Log) error {
	event, err := parseIncreaseLiquidityLogEvent(log)
	if err != nil {
		return fmt.Errorf("parse increaseLiquidity event: %w", err)
	}
	position, ok := ig.manager.GetPosition(event.TokenID)
	if !ok {
		return fmt.Errorf("position not found for token %d", event.TokenID)
	}
	p, err := ig.getPool(position.Pool)
	if err != nil {
		return err
	}
	fi0, fi1 := p.FeeGrowthInside(position.TickLower, position.TickUpper)
	return ig.manager.HandleIncreaseLiquidity(event.TokenID, event.Liquidity, fi0, fi1)
}

func (ig *Ingestor) processDecreaseLiquidity(log *types.Log) error {
	event, err := parseDecreaseLiquidityLogEvent(log)
	if err != nil {
		return fmt.Errorf("parse decreaseLiquidity event: %w", err)
	}
	position, ok := ig.manager.GetPosition(event.TokenID)
	if !ok {
		return fmt.Errorf("position not found for token %d", event.TokenID)
	}
	p, err := ig.getPool(position.Pool)
	if err != nil {
		return err
	}
	fi0, fi1 := p.FeeGrowthInside(position.TickLower, position.TickUpper)
	return ig.manager.HandleDecreaseLiquidity(event.TokenID, event.Liquidity, fi0, fi1, event.Amount0, event.Amount1)
}

func (ig *Ingestor) processCollect(log *types.Log) error {
	event, err := parseCollectLogEvent(log)
	if err != nil {
		return fmt.Errorf("parse collect event: %w", err)
	}
	_, _, err = ig.manager.HandleCollect(event.TokenID, event.Amount0, event.Amount1)
	return err
}

func (ig *Ingestor) processTransfer(log *types.Log) error {
	event, err := parseTransferLogEvent(log)
	if err != nil {
		return fmt.Errorf("parse transfer event: %w", err)
	}
	if event.From == zeroAddressHex || event.To == zeroAddressHex {
		// Mint/burn transfers from the NFT contract itself; the position's
		// ownership is established by the Mint event instead.
		return nil
	}
	return ig.manager.HandleTransfer(event.TokenID, event.From, event.To)
}
