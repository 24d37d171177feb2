package main

import (
	"github.com/holiman/uint256"

	"github.com/coinsummer/clpool/internal/math/int128"
)

// memLedger is an in-memory Ledger that always funds whatever a mint/swap/
// flash callback asks it to pay, so scripted runs never fail on settlement.
// Adapted from the pool package's own test helper of the same shape.
type memLedger struct {
	balances map[string]*uint256.Int
}

func newMemLedger(token0, token1 string) *memLedger {
	return &memLedger{balances: map[string]*uint256.Int{
		token0: new(uint256.Int),
		token1: new(uint256.Int),
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

// autoPayCallback satisfies MintCallback/SwapCallback/FlashCallback by
// always crediting the ledger with whatever the pool asks for.
type autoPayCallback struct {
	ledger         *memLedger
	token0, token1 string
}

func (c autoPayCallback) MintCallback(amount0, amount1 *uint256.Int, data []byte) error {
	c.ledger.credit(c.token0, amount0)
	c.ledger.credit(c.token1, amount1)
	return nil
}

func (c autoPayCallback) SwapCallback(amount0, amount1 *int128.Int, data []byte) error {
	if amount0.Sign() > 0 {
		c.ledger.credit(c.token0, amount0.Abs())
	}
	if amount1.Sign() > 0 {
		c.ledger.credit(c.token1, amount1.Abs())
	}
	return nil
}

func (c autoPayCallback) FlashCallback(fee0, fee1 *uint256.Int, data []byte) error {
	c.ledger.credit(c.token0, fee0)
	c.ledger.credit(c.token1, fee1)
	return nil
}
