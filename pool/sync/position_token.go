// Package sync mirrors on-chain NonfungiblePositionManager events onto
// externally-owned position handles and drives chain ingestion for a set of
// CorePool instances.
//
// Grounded on the teacher's TokenPosition/TokenPositionManager
// (token_position_manager.go), generalized from decimal.Decimal fields onto
// this module's uint256 representation, and NFTPositionSimulator
// (nft_position_simulator.go) for the ingestion loop.
package sync

import (
	"fmt"
	"sync"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/holiman/uint256"
)

// PositionToken mirrors a single NonfungiblePositionManager token: the
// liquidity range it represents, its last-observed fee-growth-inside
// snapshot, and the tokens it has accrued but not yet collected. It tracks
// the same quantities as pool.PositionInfo but is keyed by tokenID instead
// of (owner, lower, upper), and is driven by chain events rather than
// direct Mint/Burn/Collect calls.
type PositionToken struct {
	TokenID   uint64
	Owner     string
	Pool      string
	TickLower int32
	TickUpper int32

	Liquidity *uint256.Int

	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int

	TokensOwed0 *uint256.Int
	TokensOwed1 *uint256.Int
}

// NewPositionToken constructs a freshly minted token: its fee-growth-inside
// baseline is the value observed at mint time, so nothing has accrued yet.
func NewPositionToken(tokenID uint64, owner, poolAddr string, lower, upper int32, liquidity, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) *PositionToken {
	return &PositionToken{
		TokenID:                  tokenID,
		Owner:                    owner,
		Pool:                     poolAddr,
		TickLower:                lower,
		TickUpper:                upper,
		Liquidity:                liquidity.Clone(),
		FeeGrowthInside0LastX128: feeGrowthInside0X128.Clone(),
		FeeGrowthInside1LastX128: feeGrowthInside1X128.Clone(),
		TokensOwed0:              new(uint256.Int),
		TokensOwed1:              new(uint256.Int),
	}
}

// Clone returns a deep copy, mirroring the teacher's TokenPosition.Clone.
func (t *PositionToken) Clone() *PositionToken {
	return &PositionToken{
		TokenID:                  t.TokenID,
		Owner:                    t.Owner,
		Pool:                     t.Pool,
		TickLower:                t.TickLower,
		TickUpper:                t.TickUpper,
		Liquidity:                t.Liquidity.Clone(),
		FeeGrowthInside0LastX128: t.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: t.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              t.TokensOwed0.Clone(),
		TokensOwed1:              t.TokensOwed1.Clone(),
	}
}

// IsEmpty reports whether the token has neither liquidity nor uncollected
// tokens, and so is safe to drop from the manager.
func (t *PositionToken) IsEmpty() bool {
	return t.Liquidity.IsZero() && t.TokensOwed0.IsZero() && t.TokensOwed1.IsZero()
}

// accrueFees returns owed plus (feeGrowthInside-feeGrowthInsideLast)*liquidity/Q128,
// the same accrual this module's pool.PositionInfo.Update performs before any
// liquidity change is applied. It does not touch the last-seen snapshot;
// callers advance that themselves.
func accrueFees(liquidity, feeGrowthInsideX128, feeGrowthInsideLastX128, owed *uint256.Int) (*uint256.Int, error) {
	delta := new(uint256.Int).Sub(feeGrowthInsideX128, feeGrowthInsideLastX128)
	if delta.IsZero() || liquidity.IsZero() {
		return owed.Clone(), nil
	}
	earned, err := fixedpoint.MulDiv(delta, liquidity, fixedpoint.Q128)
	if err != nil {
		return nil, fmt.Errorf("fee accrual overflow for token: %w", err)
	}
	return new(uint256.Int).Add(owed, earned), nil
}

// IncreaseLiquidity accrues fees up to the new feeGrowthInside snapshot,
// then adds liquidityDelta, mirroring the teacher's IncreaseLiquidity.
func (t *PositionToken) IncreaseLiquidity(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) error {
	owed0, err := accrueFees(t.Liquidity, feeGrowthInside0X128, t.FeeGrowthInside0LastX128, t.TokensOwed0)
	if err != nil {
		return err
	}
	owed1, err := accrueFees(t.Liquidity, feeGrowthInside1X128, t.FeeGrowthInside1LastX128, t.TokensOwed1)
	if err != nil {
		return err
	}
	t.TokensOwed0, t.TokensOwed1 = owed0, owed1
	t.FeeGrowthInside0LastX128 = feeGrowthInside0X128.Clone()
	t.FeeGrowthInside1LastX128 = feeGrowthInside1X128.Clone()
	t.Liquidity = new(uint256.Int).Add(t.Liquidity, liquidityDelta)
	return nil
}

// DecreaseLiquidity accrues fees, subtracts liquidityDelta (failing if it
// exceeds the held amount), and credits the freed principal amount0/amount1
// into tokensOwed exactly as CorePool.Burn does for direct positions.
func (t *PositionToken) DecreaseLiquidity(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128, amount0, amount1 *uint256.Int) error {
	if t.Liquidity.Cmp(liquidityDelta) < 0 {
		return fmt.Errorf("decreaseLiquidity: token %d liquidity underflow", t.TokenID)
	}
	owed0, err := accrueFees(t.Liquidity, feeGrowthInside0X128, t.FeeGrowthInside0LastX128, t.TokensOwed0)
	if err != nil {
		return err
	}
	owed1, err := accrueFees(t.Liquidity, feeGrowthInside1X128, t.FeeGrowthInside1LastX128, t.TokensOwed1)
	if err != nil {
		return err
	}
	t.FeeGrowthInside0LastX128 = feeGrowthInside0X128.Clone()
	t.FeeGrowthInside1LastX128 = feeGrowthInside1X128.Clone()
	t.Liquidity = new(uint256.Int).Sub(t.Liquidity, liquidityDelta)
	t.TokensOwed0 = new(uint256.Int).Add(owed0, amount0)
	t.TokensOwed1 = new(uint256.Int).Add(owed1, amount1)
	return nil
}

// Collect pays out up to (req0, req1) of tokensOwed, capping at the amount
// actually owed, mirroring pool.PositionInfo.Collect.
func (t *PositionToken) Collect(req0, req1 *uint256.Int) (out0, out1 *uint256.Int) {
	out0 = req0.Clone()
	if out0.Cmp(t.TokensOwed0) > 0 {
		out0 = t.TokensOwed0.Clone()
	}
	out1 = req1.Clone()
	if out1.Cmp(t.TokensOwed1) > 0 {
		out1 = t.TokensOwed1.Clone()
	}
	t.TokensOwed0 = new(uint256.Int).Sub(t.TokensOwed0, out0)
	t.TokensOwed1 = new(uint256.Int).Sub(t.TokensOwed1, out1)
	return out0, out1
}

// PositionTokenManager indexes PositionTokens by tokenID, with owner and
// pool secondary indexes, mirroring the teacher's TokenPositionManager.
type PositionTokenManager struct {
	mu sync.RWMutex

	Positions  map[uint64]*PositionToken
	OwnerIndex map[string]map[uint64]struct{}
	PoolIndex  map[string]map[uint64]struct{}
}

// NewPositionTokenManager returns an empty manager.
func NewPositionTokenManager() *PositionTokenManager {
	return &PositionTokenManager{
		Positions:  make(map[uint64]*PositionToken),
		OwnerIndex: make(map[string]map[uint64]struct{}),
		PoolIndex:  make(map[string]map[uint64]struct{}),
	}
}

func (m *PositionTokenManager) addIndexes(tokenID uint64, owner, poolAddr string) {
	if m.OwnerIndex[owner] == nil {
		m.OwnerIndex[owner] = make(map[uint64]struct{})
	}
	m.OwnerIndex[owner][tokenID] = struct{}{}
	if m.PoolIndex[poolAddr] == nil {
		m.PoolIndex[poolAddr] = make(map[uint64]struct{})
	}
	m.PoolIndex[poolAddr][tokenID] = struct{}{}
}

func (m *PositionTokenManager) removeOwnerIndex(tokenID uint64, owner string) {
	if set, ok := m.OwnerIndex[owner]; ok {
		delete(set, tokenID)
		if len(set) == 0 {
			delete(m.OwnerIndex, owner)
		}
	}
}

// GetPosition returns the token by ID, or false if not found.
func (m *PositionTokenManager) GetPosition(tokenID uint64) (*PositionToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.Positions[tokenID]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// GetPositionsByOwner returns every token currently held by owner.
func (m *PositionTokenManager) GetPositionsByOwner(owner string) []*PositionToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PositionToken, 0, len(m.OwnerIndex[owner]))
	for id := range m.OwnerIndex[owner] {
		out = append(out, m.Positions[id].Clone())
	}
	return out
}

// GetPositionsByPool returns every token minted against poolAddr.
func (m *PositionTokenManager) GetPositionsByPool(poolAddr string) []*PositionToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PositionToken, 0, len(m.PoolIndex[poolAddr]))
	for id := range m.PoolIndex[poolAddr] {
		out = append(out, m.Positions[id].Clone())
	}
	return out
}

// HandleMint registers a newly minted token. Fails if tokenID already exists.
func (m *PositionTokenManager) HandleMint(tokenID uint64, owner, poolAddr string, lower, upper int32, liquidity, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Positions[tokenID]; exists {
		return fmt.Errorf("handleMint: token %d already exists", tokenID)
	}
	m.Positions[tokenID] = NewPositionToken(tokenID, owner, poolAddr, lower, upper, liquidity, feeGrowthInside0X128, feeGrowthInside1X128)
	m.addIndexes(tokenID, owner, poolAddr)
	return nil
}

// HandleIncreaseLiquidity applies an IncreaseLiquidity event to an
// existing token.
func (m *PositionTokenManager) HandleIncreaseLiquidity(tokenID uint64, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Positions[tokenID]
	if !ok {
		return fmt.Errorf("handleIncreaseLiquidity: token %d not found", tokenID)
	}
	return t.IncreaseLiquidity(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128)
}

// HandleDecreaseLiquidity applies a DecreaseLiquidity event. The token stays
// in the manager and its indexes even if it becomes empty afterward.
func (m *PositionTokenManager) HandleDecreaseLiquidity(tokenID uint64, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128, amount0, amount1 *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Positions[tokenID]
	if !ok {
		return fmt.Errorf("handleDecreaseLiquidity: token %d not found", tokenID)
	}
	return t.DecreaseLiquidity(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128, amount0, amount1)
}

// HandleCollect applies a Collect event and returns the amounts paid out.
func (m *PositionTokenManager) HandleCollect(tokenID uint64, req0, req1 *uint256.Int) (out0, out1 *uint256.Int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Positions[tokenID]
	if !ok {
		return nil, nil, fmt.Errorf("handleCollect: token %d not found", tokenID)
	}
	out0, out1 = t.Collect(req0, req1)
	return out0, out1, nil
}

// Snapshot returns a deep copy of every tracked token, for pool/store to
// serialize without taking a dependency on this package's internal locking.
func (m *PositionTokenManager) Snapshot() []*PositionToken {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PositionToken, 0, len(m.Positions))
	for _, t := range m.Positions {
		out = append(out, t.Clone())
	}
	return out
}

// LoadSnapshot replaces the manager's contents with tokens, rebuilding the
// owner/pool secondary indexes.
func (m *PositionTokenManager) LoadSnapshot(tokens []*PositionToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Positions = make(map[uint64]*PositionToken, len(tokens))
	m.OwnerIndex = make(map[string]map[uint64]struct{})
	m.PoolIndex = make(map[string]map[uint64]struct{})
	for _, t := range tokens {
		m.Positions[t.TokenID] = t.Clone()
		m.addIndexes(t.TokenID, t.Owner, t.Pool)
	}
}

// HandleTransfer updates token ownership. The NonfungiblePositionManager
// mint/burn transfers (from/to the zero address) are filtered out by the
// caller before this is reached, same as the teacher's processTransferEvent.
func (m *PositionTokenManager) HandleTransfer(tokenID uint64, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Positions[tokenID]
	if !ok {
		return fmt.Errorf("handleTransfer: token %d not found", tokenID)
	}
	if t.Owner != from {
		return fmt.Errorf("handleTransfer: token %d owner mismatch, have %s want %s", tokenID, t.Owner, from)
	}
	m.removeOwnerIndex(tokenID, from)
	t.Owner = to
	m.addIndexes(tokenID, to, t.Pool)
	return nil
}
