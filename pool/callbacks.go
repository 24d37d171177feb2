package pool

import (
	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/holiman/uint256"
)

// MintCallback is invoked during Mint after bookkeeping (ticks, positions)
// has already been updated; the implementation must transfer amount0Owed
// of token0 and amount1Owed of token1 into the pool's ledger before
// returning. Mirrors spec.md §6's mintCallback contract.
type MintCallback interface {
	MintCallback(amount0Owed, amount1Owed *uint256.Int, data []byte) error
}

// SwapCallback is invoked during Swap once the new price/tick/fee-growth
// state has been computed; amount0Delta/amount1Delta are signed, positive
// meaning owed by the caller to the pool.
type SwapCallback interface {
	SwapCallback(amount0Delta, amount1Delta *int128.Int, data []byte) error
}

// FlashCallback is invoked during Flash after the requested principal has
// already been transferred out; the implementation must return principal
// plus fee0/fee1 before returning.
type FlashCallback interface {
	FlashCallback(fee0, fee1 *uint256.Int, data []byte) error
}

// Ledger is the token interface the pool consumes to read its own balances
// and move assets, kept abstract (spec.md §6 treats settlement as an
// external collaborator) so CorePool never talks to a live chain directly.
type Ledger interface {
	BalanceOf(token string) (*uint256.Int, error)
	Transfer(token, to string, amount *uint256.Int) error
}
