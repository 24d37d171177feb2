package pool

import (
	"github.com/coinsummer/clpool/internal/math/int128"
	"github.com/holiman/uint256"
)

// ActionType discriminates the kind of event a Record carries, generalized
// from the teacher's unused ActionType/Record pair (declared in pool.go but
// never driven by any caller there) into the concrete MintEvent/SwapEvent/...
// payloads this engine actually emits.
type ActionType string

const (
	ActionMint                              ActionType = "Mint"
	ActionBurn                              ActionType = "Burn"
	ActionCollect                           ActionType = "Collect"
	ActionSwap                              ActionType = "Swap"
	ActionFlash                             ActionType = "Flash"
	ActionIncreaseObservationCardinalityNext ActionType = "IncreaseObservationCardinalityNext"
)

// Record is a single emitted event: its action type and the action-specific
// payload (it carries no timestamp). cmd/poolctl renders a sequence of these
// as its JSON trace; pool/sync does not consume Records.
type Record struct {
	ActionType ActionType
	Payload    interface{}
}

// MintEvent is emitted on every successful Mint.
type MintEvent struct {
	Sender               string
	Owner                string
	TickLower, TickUpper int32
	Amount               *uint256.Int
	Amount0, Amount1     *uint256.Int
}

// BurnEvent is emitted on every successful Burn.
type BurnEvent struct {
	Owner                string
	TickLower, TickUpper int32
	Amount               *uint256.Int
	Amount0, Amount1     *uint256.Int
}

// CollectEvent is emitted on every successful Collect.
type CollectEvent struct {
	Owner                string
	Recipient            string
	TickLower, TickUpper int32
	Amount0, Amount1     *uint256.Int
}

// SwapEvent is emitted on every successful Swap.
type SwapEvent struct {
	Sender           string
	Recipient        string
	Amount0, Amount1 *int128.Int
	SqrtPriceX96     *uint256.Int
	Liquidity        *uint256.Int
	Tick             int32
}

// FlashEvent is emitted on every successful Flash.
type FlashEvent struct {
	Sender           string
	Recipient        string
	Amount0, Amount1 *uint256.Int
	Fee0, Fee1       *uint256.Int
}

// IncreaseObservationCardinalityNextEvent is emitted whenever the oracle's
// target cardinality grows.
type IncreaseObservationCardinalityNextEvent struct {
	ObservationCardinalityNextOld uint16
	ObservationCardinalityNextNew uint16
}
