package pool

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/holiman/uint256"
)

// PositionKey identifies a position by the hash of (owner, lower, upper),
// exactly as spec.md §3 requires and as the teacher's
// GetPositionAndInitIfAbsent(owner, lower, upper) call site implies.
type PositionKey [32]byte

// NewPositionKey hashes the triple into a lookup key.
func NewPositionKey(owner string, lower, upper int32) PositionKey {
	h := sha256.New()
	h.Write([]byte(owner))
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(lower))
	binary.BigEndian.PutUint32(buf[4:8], uint32(upper))
	h.Write(buf[:])
	var key PositionKey
	copy(key[:], h.Sum(nil))
	return key
}

// PositionInfo is a single owner-range's liquidity and accrued fees,
// grounded on the teacher's Position type (inferred from pool.go's
// position.Update/UpdateBurn call sites) and on TokenPosition's
// fee-accrual-before-mutation pattern in token_position_manager.go.
type PositionInfo struct {
	Liquidity                *uint256.Int
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int
	TokensOwed0              *uint256.Int
	TokensOwed1              *uint256.Int
}

func newPositionInfo() *PositionInfo {
	return &PositionInfo{
		Liquidity:                new(uint256.Int),
		FeeGrowthInside0LastX128: new(uint256.Int),
		FeeGrowthInside1LastX128: new(uint256.Int),
		TokensOwed0:              new(uint256.Int),
		TokensOwed1:              new(uint256.Int),
	}
}

// positionMeta records the (owner, lower, upper) triple a PositionKey was
// hashed from, since the hash itself cannot be inverted; kept alongside the
// table purely so pool/store can snapshot positions by their natural key.
type positionMeta struct {
	owner       string
	lower, upper int32
}

// PositionTable is the map of every touched position, keyed by
// PositionKey.
type PositionTable struct {
	positions map[PositionKey]*PositionInfo
	meta      map[PositionKey]positionMeta
}

// NewPositionTable returns an empty position table.
func NewPositionTable() *PositionTable {
	return &PositionTable{
		positions: make(map[PositionKey]*PositionInfo),
		meta:      make(map[PositionKey]positionMeta),
	}
}

// GetOrCreate returns the position for (owner, lower, upper), creating an
// empty entry on first touch. Mirrors the teacher's
// GetPositionAndInitIfAbsent.
func (p *PositionTable) GetOrCreate(owner string, lower, upper int32) *PositionInfo {
	key := NewPositionKey(owner, lower, upper)
	info, ok := p.positions[key]
	if !ok {
		info = newPositionInfo()
		p.positions[key] = info
		p.meta[key] = positionMeta{owner: owner, lower: lower, upper: upper}
	}
	return info
}

// Get returns the position for (owner, lower, upper), or nil if untouched.
func (p *PositionTable) Get(owner string, lower, upper int32) *PositionInfo {
	return p.positions[NewPositionKey(owner, lower, upper)]
}

// Update accrues fees since the position's last snapshot, then applies
// liquidityDelta. Fee accrual happens strictly before the liquidity
// mutation, per spec.md §4.5. A zero delta with nothing accrued still
// refreshes the fgInside snapshots (needed by the burn-then-collect path).
func (info *PositionInfo) Update(liquidityDelta *int128.Int, fgInside0, fgInside1 *uint256.Int) error {
	owed0, err := accrue(info.Liquidity, fgInside0, info.FeeGrowthInside0LastX128)
	if err != nil {
		return err
	}
	owed1, err := accrue(info.Liquidity, fgInside1, info.FeeGrowthInside1LastX128)
	if err != nil {
		return err
	}
	info.TokensOwed0 = new(uint256.Int).Add(info.TokensOwed0, owed0)
	info.TokensOwed1 = new(uint256.Int).Add(info.TokensOwed1, owed1)

	if !liquidityDelta.IsZero() {
		var newLiquidity *uint256.Int
		if liquidityDelta.Sign() >= 0 {
			newLiquidity = new(uint256.Int).Add(info.Liquidity, liquidityDelta.Abs())
		} else {
			if info.Liquidity.Cmp(liquidityDelta.Abs()) < 0 {
				return newErr(ErrNotEnoughLiquidity, "burn exceeds position liquidity")
			}
			newLiquidity = new(uint256.Int).Sub(info.Liquidity, liquidityDelta.Abs())
		}
		info.Liquidity = newLiquidity
	}

	info.FeeGrowthInside0LastX128 = fgInside0.Clone()
	info.FeeGrowthInside1LastX128 = fgInside1.Clone()
	return nil
}

// accrue computes floor((fgInside - fgInsideLast) * liquidity / Q128) using
// modular (wraparound) subtraction, per spec.md §4.5.
func accrue(liquidity, fgInside, fgInsideLast *uint256.Int) (*uint256.Int, error) {
	if liquidity.IsZero() {
		return new(uint256.Int), nil
	}
	delta := new(uint256.Int).Sub(fgInside, fgInsideLast)
	return fixedpoint.MulDiv(delta, liquidity, fixedpoint.Q128)
}

// PositionSnapshot is a serializable copy of one position, used by
// pool/store to persist a PositionTable.
type PositionSnapshot struct {
	Owner                    string
	Lower                    int32
	Upper                    int32
	Liquidity                string
	FeeGrowthInside0LastX128 string
	FeeGrowthInside1LastX128 string
	TokensOwed0              string
	TokensOwed1              string
}

// Snapshot returns every touched position as a PositionSnapshot.
func (p *PositionTable) Snapshot() []PositionSnapshot {
	out := make([]PositionSnapshot, 0, len(p.positions))
	for key, info := range p.positions {
		m := p.meta[key]
		out = append(out, PositionSnapshot{
			Owner: m.owner, Lower: m.lower, Upper: m.upper,
			Liquidity:                info.Liquidity.String(),
			FeeGrowthInside0LastX128: info.FeeGrowthInside0LastX128.String(),
			FeeGrowthInside1LastX128: info.FeeGrowthInside1LastX128.String(),
			TokensOwed0:              info.TokensOwed0.String(),
			TokensOwed1:              info.TokensOwed1.String(),
		})
	}
	return out
}

// LoadSnapshot repopulates the table from a prior Snapshot.
func (p *PositionTable) LoadSnapshot(snaps []PositionSnapshot) error {
	for _, s := range snaps {
		liquidity, err := uint256.FromDecimal(s.Liquidity)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid liquidity in position snapshot", err)
		}
		fi0, err := uint256.FromDecimal(s.FeeGrowthInside0LastX128)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid feeGrowthInside0Last in position snapshot", err)
		}
		fi1, err := uint256.FromDecimal(s.FeeGrowthInside1LastX128)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid feeGrowthInside1Last in position snapshot", err)
		}
		owed0, err := uint256.FromDecimal(s.TokensOwed0)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid tokensOwed0 in position snapshot", err)
		}
		owed1, err := uint256.FromDecimal(s.TokensOwed1)
		if err != nil {
			return wrapErr(ErrOverflow, "invalid tokensOwed1 in position snapshot", err)
		}
		key := NewPositionKey(s.Owner, s.Lower, s.Upper)
		p.positions[key] = &PositionInfo{
			Liquidity:                liquidity,
			FeeGrowthInside0LastX128: fi0,
			FeeGrowthInside1LastX128: fi1,
			TokensOwed0:              owed0,
			TokensOwed1:              owed1,
		}
		p.meta[key] = positionMeta{owner: s.Owner, lower: s.Lower, upper: s.Upper}
	}
	return nil
}

// Collect caps req0/req1 by tokensOwed, decrements, and returns the amounts
// actually paid out, mirroring the teacher's CollectPosition.
func (info *PositionInfo) Collect(req0, req1 *uint256.Int) (out0, out1 *uint256.Int) {
	out0 = req0.Clone()
	if out0.Cmp(info.TokensOwed0) > 0 {
		out0 = info.TokensOwed0.Clone()
	}
	out1 = req1.Clone()
	if out1.Cmp(info.TokensOwed1) > 0 {
		out1 = info.TokensOwed1.Clone()
	}
	info.TokensOwed0 = new(uint256.Int).Sub(info.TokensOwed0, out0)
	info.TokensOwed1 = new(uint256.Int).Sub(info.TokensOwed1, out1)
	return out0, out1
}
