package raffle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// State is the raffle lifecycle phase; entry is only accepted while Open.
type State uint8

const (
	StateOpen State = iota
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

const (
	// NumWords is the number of random words requested per draw.
	NumWords = 1
	// RequestConfirmations is the number of blocks the oracle waits before answering.
	RequestConfirmations = 3
)

// Upkeep is the result of checkUpkeep.
type Upkeep struct {
	Needed      bool
	PerformData []byte
}

// ConstructorArgs are the Raffle constructor parameters.
type ConstructorArgs struct {
	VRFCoordinator   common.Address
	EntranceFee      *big.Int
	GasLane          common.Hash
	SubscriptionID   uint64
	CallbackGasLimit uint32
	Interval         *big.Int
}

// Values returns the arguments in ABI order.
func (a ConstructorArgs) Values() []any {
	return []any{a.VRFCoordinator, a.EntranceFee, [32]byte(a.GasLane), a.SubscriptionID, a.CallbackGasLimit, a.Interval}
}
