package pool

import "github.com/holiman/uint256"

// Snapshot is a fully serializable copy of a CorePool's state: Slot0, the
// fee-growth globals, active liquidity, every touched tick and position,
// and the oracle's active observation window. pool/store encodes this as a
// JSON blob rather than this package taking a direct dependency on gorm,
// the way the teacher's CorePool did by embedding gorm.Model.
type Snapshot struct {
	Cfg Config

	SqrtPriceX96               string
	Tick                       int32
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16

	Liquidity            string
	FeeGrowthGlobal0X128 string
	FeeGrowthGlobal1X128 string

	Ticks        []TickSnapshot
	Positions    []PositionSnapshot
	Observations []Observation
}

// Snapshot captures the pool's entire state for persistence.
func (p *CorePool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sqrtPrice string
	if p.slot0.SqrtPriceX96 != nil {
		sqrtPrice = p.slot0.SqrtPriceX96.String()
	}

	return Snapshot{
		Cfg:                        p.cfg,
		SqrtPriceX96:               sqrtPrice,
		Tick:                       p.slot0.Tick,
		ObservationIndex:           p.slot0.ObservationIndex,
		ObservationCardinality:     p.slot0.ObservationCardinality,
		ObservationCardinalityNext: p.slot0.ObservationCardinalityNext,
		Liquidity:                  p.liquidity.String(),
		FeeGrowthGlobal0X128:       p.feeGrowthGlobal0X128.String(),
		FeeGrowthGlobal1X128:       p.feeGrowthGlobal1X128.String(),
		Ticks:                      p.ticks.Snapshot(),
		Positions:                  p.positions.Snapshot(),
		Observations:               p.oracle.Snapshot(p.slot0.ObservationCardinalityNext),
	}
}

// LoadCorePool reconstructs a CorePool from a Snapshot taken by Snapshot,
// wiring it to ledger for subsequent Mint/Swap/Flash calls.
func LoadCorePool(snap Snapshot, ledger Ledger) (*CorePool, error) {
	p := NewCorePool(snap.Cfg, ledger)

	if snap.SqrtPriceX96 != "" {
		sqrtPrice, err := uint256.FromDecimal(snap.SqrtPriceX96)
		if err != nil {
			return nil, wrapErr(ErrOverflow, "invalid sqrtPriceX96 in snapshot", err)
		}
		p.slot0 = Slot0{
			SqrtPriceX96:               sqrtPrice,
			Tick:                       snap.Tick,
			ObservationIndex:           snap.ObservationIndex,
			ObservationCardinality:     snap.ObservationCardinality,
			ObservationCardinalityNext: snap.ObservationCardinalityNext,
		}
	}

	liquidity, err := uint256.FromDecimal(snap.Liquidity)
	if err != nil {
		return nil, wrapErr(ErrOverflow, "invalid liquidity in snapshot", err)
	}
	p.liquidity = liquidity

	fg0, err := uint256.FromDecimal(snap.FeeGrowthGlobal0X128)
	if err != nil {
		return nil, wrapErr(ErrOverflow, "invalid feeGrowthGlobal0 in snapshot", err)
	}
	p.feeGrowthGlobal0X128 = fg0

	fg1, err := uint256.FromDecimal(snap.FeeGrowthGlobal1X128)
	if err != nil {
		return nil, wrapErr(ErrOverflow, "invalid feeGrowthGlobal1 in snapshot", err)
	}
	p.feeGrowthGlobal1X128 = fg1

	if err := p.ticks.LoadSnapshot(snap.Ticks); err != nil {
		return nil, err
	}
	if err := p.positions.LoadSnapshot(snap.Positions); err != nil {
		return nil, err
	}
	p.oracle.LoadSnapshot(snap.Observations)

	return p, nil
}
