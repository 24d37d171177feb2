package pool

import (
	"testing"

	"github.com/coinsummer/clpool/internal/math/fixedpoint"
	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/coinsummer/clpool/internal/math/tickmath"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// memLedger is an in-memory Ledger used only by these tests: it always
// funds whatever mint/swap/flash callbacks are asked to pay, so tests can
// focus on pool bookkeeping rather than on wiring real token transfers.
type memLedger struct {
	balances map[string]*uint256.Int
}

func newMemLedger() *memLedger {
	return &memLedger{balances: map[string]*uint256.Int{
		"token0": new(uint256.Int),
		"token1": new(uint256.Int),
	}}
}

func (l *memLedger) BalanceOf(token string) (*uint256.Int, error) {
	return l.balances[token].Clone(), nil
}

func (l *memLedger) Transfer(token, to string, amount *uint256.Int) error {
	l.balances[token] = new(uint256.Int).Sub(l.balances[token], amount)
	return nil
}

func (l *memLedger) credit(token string, amount *uint256.Int) {
	l.balances[token] = new(uint256.Int).Add(l.balances[token], amount)
}

type autoPayCallback struct{ ledger *memLedger }

func (c autoPayCallback) MintCallback(amount0, amount1 *uint256.Int, data []byte) error {
	c.ledger.credit("token0", amount0)
	c.ledger.credit("token1", amount1)
	return nil
}

func (c autoPayCallback) SwapCallback(amount0, amount1 *int128.Int, data []byte) error {
	if amount0.Sign() > 0 {
		c.ledger.credit("token0", amount0.Abs())
	}
	if amount1.Sign() > 0 {
		c.ledger.credit("token1", amount1.Abs())
	}
	return nil
}

func (c autoPayCallback) FlashCallback(fee0, fee1 *uint256.Int, data []byte) error {
	c.ledger.credit("token0", fee0)
	c.ledger.credit("token1", fee1)
	return nil
}

func newTestPool(t *testing.T, tickSpacing int32, fee uint32) (*CorePool, *memLedger, autoPayCallback) {
	t.Helper()
	ledger := newMemLedger()
	p := NewCorePool(Config{Token0: "token0", Token1: "token1", Fee: fee, TickSpacing: tickSpacing}, ledger)
	require.NoError(t, p.Initialize(fixedpoint.Q96.Clone(), 1))
	return p, ledger, autoPayCallback{ledger: ledger}
}

// S1 Mint single-range.
func TestScenarioMintSingleRange(t *testing.T) {
	p, _, cb := newTestPool(t, 60, 3000)
	amount := uint256.NewInt(1_000_000_000_000_000_000)

	amount0, amount1, err := p.Mint("alice", -60, 60, amount, cb, nil)
	require.NoError(t, err)

	diff := new(uint256.Int).Sub(amount0, amount1)
	if amount1.Cmp(amount0) > 0 {
		diff = new(uint256.Int).Sub(amount1, amount0)
	}
	require.True(t, diff.Cmp(uint256.NewInt(1)) <= 0, "amount0 and amount1 should match within 1 unit at tick 0")

	require.True(t, p.Liquidity().Eq(amount))

	initLower, err := p.ticks.IsInitialized(-60)
	require.NoError(t, err)
	require.True(t, initLower)
	initUpper, err := p.ticks.IsInitialized(60)
	require.NoError(t, err)
	require.True(t, initUpper)
}

// S2 Swap within single tick.
func TestScenarioSwapWithinSingleTick(t *testing.T) {
	p, _, cb := newTestPool(t, 60, 3000)
	amount := uint256.NewInt(1_000_000_000_000_000_000)
	_, _, err := p.Mint("alice", -60, 60, amount, cb, nil)
	require.NoError(t, err)

	amountIn := uint256.NewInt(1_000_000_000_000_000)
	limit := new(uint256.Int).Add(tickmath.MinSqrtRatio, uint256.NewInt(1))

	amount0, amount1, err := p.Swap("bob", true, amountIn, limit, cb, nil, 2)
	require.NoError(t, err)

	require.True(t, amount0.Eq(mustInt128(amountIn)))
	require.True(t, amount1.Sign() < 0)

	fg0, _ := p.FeeGrowthGlobal()
	require.False(t, fg0.IsZero())

	slot0 := p.Slot0()
	require.True(t, slot0.Tick <= 0)
}

// S3 Swap crossing one tick.
func TestScenarioSwapCrossingOneTick(t *testing.T) {
	p, _, cb := newTestPool(t, 60, 3000)
	amount := uint256.NewInt(1_000_000_000_000_000_000)
	_, _, err := p.Mint("alice", -60, 0, amount, cb, nil)
	require.NoError(t, err)
	_, _, err = p.Mint("alice", 0, 60, amount, cb, nil)
	require.NoError(t, err)

	amountIn := uint256.NewInt(500_000_000_000_000_000)
	limit := new(uint256.Int).Add(tickmath.MinSqrtRatio, uint256.NewInt(1))

	_, _, err = p.Swap("bob", true, amountIn, limit, cb, nil, 2)
	require.NoError(t, err)

	slot0 := p.Slot0()
	require.True(t, slot0.Tick < 0)
}

// S4 Price limit hit.
func TestScenarioPriceLimitHit(t *testing.T) {
	p, _, cb := newTestPool(t, 60, 3000)
	amount := uint256.NewInt(1_000_000_000_000_000_000)
	_, _, err := p.Mint("alice", -600, 600, amount, cb, nil)
	require.NoError(t, err)

	limit, err := tickmath.GetSqrtRatioAtTick(-10)
	require.NoError(t, err)

	amountIn := uint256.MustFromDecimal("100000000000000000000")
	_, _, err = p.Swap("bob", true, amountIn, limit, cb, nil, 2)
	require.NoError(t, err)

	slot0 := p.Slot0()
	require.True(t, slot0.SqrtPriceX96.Eq(limit))
}

// S5 Burn and collect partial.
func TestScenarioBurnAndCollectPartial(t *testing.T) {
	p, _, cb := newTestPool(t, 60, 3000)
	amount := uint256.NewInt(1_000_000_000_000_000_000)
	_, _, err := p.Mint("alice", -60, 60, amount, cb, nil)
	require.NoError(t, err)

	amountIn := uint256.NewInt(1_000_000_000_000_000)
	limit := new(uint256.Int).Add(tickmath.MinSqrtRatio, uint256.NewInt(1))
	_, _, err = p.Swap("bob", true, amountIn, limit, cb, nil, 2)
	require.NoError(t, err)

	half := new(uint256.Int).Div(amount, uint256.NewInt(2))
	_, _, err = p.Burn("alice", -60, 60, half)
	require.NoError(t, err)

	maxReq := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	out0, out1, err := p.Collect("alice", "alice", -60, 60, maxReq, maxReq)
	require.NoError(t, err)
	require.True(t, !out0.IsZero() || !out1.IsZero())

	pos := p.Position("alice", -60, 60)
	require.True(t, pos.TokensOwed0.IsZero())
	require.True(t, pos.TokensOwed1.IsZero())
}

// S7 Flash repayment shortfall.
func TestScenarioFlashRepaymentShortfall(t *testing.T) {
	p, ledger, _ := newTestPool(t, 60, 3000)
	amount := uint256.NewInt(1_000_000_000_000_000_000)
	cb := autoPayCallback{ledger: ledger}
	_, _, err := p.Mint("alice", -60, 60, amount, cb, nil)
	require.NoError(t, err)

	shortPay := shortfallCallback{ledger: ledger, principal0: uint256.NewInt(1000)}
	_, _, err = p.Flash("bob", uint256.NewInt(1000), new(uint256.Int), shortPay, nil)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrFlashLoanNotPaid, perr.Kind)
}

// S8 Reentrancy: a callback that calls back into the pool must fail with
// ErrReentrant instead of deadlocking.
func TestScenarioMintCallbackReentryFailsWithErrReentrant(t *testing.T) {
	p, _, cb := newTestPool(t, 60, 3000)
	amount := uint256.NewInt(1_000_000_000_000_000_000)

	reentrant := &reentrantMintCallback{inner: cb, pool: p}
	_, _, err := p.Mint("alice", -60, 60, amount, reentrant, nil)
	require.NoError(t, err)
	require.Error(t, reentrant.reenterErr)
	var perr *Error
	require.ErrorAs(t, reentrant.reenterErr, &perr)
	require.Equal(t, ErrReentrant, perr.Kind)
}

type reentrantMintCallback struct {
	inner autoPayCallback
	pool  *CorePool

	reenterErr error
}

func (c *reentrantMintCallback) MintCallback(amount0, amount1 *uint256.Int, data []byte) error {
	_, _, c.reenterErr = c.pool.Mint("alice", -60, 60, uint256.NewInt(1), c.inner, nil)
	return c.inner.MintCallback(amount0, amount1, data)
}

type shortfallCallback struct {
	ledger     *memLedger
	principal0 *uint256.Int
}

func (c shortfallCallback) FlashCallback(fee0, fee1 *uint256.Int, data []byte) error {
	// Repay one unit less than required to trigger the shortfall path.
	owed := new(uint256.Int).Add(c.principal0, fee0)
	short := new(uint256.Int).Sub(owed, uint256.NewInt(1))
	if owed.IsZero() {
		short = new(uint256.Int)
	}
	c.ledger.credit("token0", short)
	c.ledger.credit("token1", fee1)
	return nil
}

func mustInt128(v *uint256.Int) *int128.Int {
	r, err := int128.FromUint256(v)
	if err != nil {
		panic(err)
	}
	return r
}
