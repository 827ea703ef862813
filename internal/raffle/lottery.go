package raffle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

type (
	// Lottery is the raffle surface shared by the JSON-RPC binding and the in-process devnet.
	// Transactions are sent by the account the value was bound to and return mined receipts.
	Lottery interface {
		Address() common.Address
		Sender() common.Address

		EntranceFee(ctx context.Context) (*big.Int, error)
		Interval(ctx context.Context) (*big.Int, error)
		NumWords(ctx context.Context) (*big.Int, error)
		RequestConfirmations(ctx context.Context) (*big.Int, error)
		RaffleState(ctx context.Context) (State, error)
		NumberOfPlayers(ctx context.Context) (*big.Int, error)
		Player(ctx context.Context, index *big.Int) (common.Address, error)
		RecentWinner(ctx context.Context) (common.Address, error)
		LatestTimestamp(ctx context.Context) (*big.Int, error)
		CheckUpkeep(ctx context.Context, checkData []byte) (Upkeep, error)

		Enter(ctx context.Context, value *big.Int) (*types.Receipt, error)
		PerformUpkeep(ctx context.Context, performData []byte) (*types.Receipt, error)

		WatchWinnerPicked(ctx context.Context, sink chan<- *WinnerPickedEvent) (event.Subscription, error)
	}

	// VRFCoordinator is the randomness oracle mock used on development chains.
	VRFCoordinator interface {
		Address() common.Address

		CreateSubscription(ctx context.Context) (uint64, *types.Receipt, error)
		FundSubscription(ctx context.Context, subID uint64, amount *big.Int) (*types.Receipt, error)
		AddConsumer(ctx context.Context, subID uint64, consumer common.Address) (*types.Receipt, error)
		FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer common.Address) (*types.Receipt, error)
	}
)
