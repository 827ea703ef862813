package devnet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

const (
	gasDeployRaffle  = 1_127_000
	gasEnterRaffle   = 68_500
	gasPerformUpkeep = 74_300
)

type (
	raffleContract struct {
		address          common.Address
		coordinator      common.Address
		entranceFee      *big.Int
		gasLane          common.Hash
		subscriptionID   uint64
		callbackGasLimit uint32
		interval         *big.Int

		players       []common.Address
		recentWinner  common.Address
		state         raffle.State
		lastTimestamp uint64

		winnerFeed event.Feed
	}

	// Raffle is a raffle contract hosted on the chain, bound to a sending account.
	Raffle struct {
		chain    *Chain
		contract *raffleContract
		from     common.Address
	}
)

var _ raffle.Lottery = (*Raffle)(nil)

func (r *Raffle) Address() common.Address {
	return r.contract.address
}

func (r *Raffle) Sender() common.Address {
	return r.from
}

// Connect returns the same raffle with transactions sent from another account.
func (r *Raffle) Connect(from common.Address) *Raffle {
	return &Raffle{chain: r.chain, contract: r.contract, from: from}
}

func (r *Raffle) EntranceFee(ctx context.Context) (*big.Int, error) {
	return view(ctx, r.chain, func() *big.Int { return new(big.Int).Set(r.contract.entranceFee) })
}

func (r *Raffle) Interval(ctx context.Context) (*big.Int, error) {
	return view(ctx, r.chain, func() *big.Int { return new(big.Int).Set(r.contract.interval) })
}

func (r *Raffle) NumWords(ctx context.Context) (*big.Int, error) {
	return big.NewInt(raffle.NumWords), ctx.Err()
}

func (r *Raffle) RequestConfirmations(ctx context.Context) (*big.Int, error) {
	return big.NewInt(raffle.RequestConfirmations), ctx.Err()
}

func (r *Raffle) RaffleState(ctx context.Context) (raffle.State, error) {
	return view(ctx, r.chain, func() raffle.State { return r.contract.state })
}

func (r *Raffle) NumberOfPlayers(ctx context.Context) (*big.Int, error) {
	return view(ctx, r.chain, func() *big.Int { return big.NewInt(int64(len(r.contract.players))) })
}

// Player returns the entrant at index; out of range indexes revert like a Solidity array access.
func (r *Raffle) Player(ctx context.Context, index *big.Int) (common.Address, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, err
	}

	r.chain.mu.Lock()
	defer r.chain.mu.Unlock()

	if !index.IsUint64() || index.Uint64() >= uint64(len(r.contract.players)) {
		return common.Address{}, raffle.Panic(0x32)
	}
	return r.contract.players[index.Uint64()], nil
}

func (r *Raffle) RecentWinner(ctx context.Context) (common.Address, error) {
	return view(ctx, r.chain, func() common.Address { return r.contract.recentWinner })
}

func (r *Raffle) LatestTimestamp(ctx context.Context) (*big.Int, error) {
	return view(ctx, r.chain, func() *big.Int { return new(big.Int).SetUint64(r.contract.lastTimestamp) })
}

// CheckUpkeep evaluates upkeep against the latest block with any pending IncreaseTime applied.
func (r *Raffle) CheckUpkeep(ctx context.Context, checkData []byte) (raffle.Upkeep, error) {
	return view(ctx, r.chain, func() raffle.Upkeep {
		return raffle.Upkeep{
			Needed:      r.contract.upkeepNeeded(r.chain.pendingTimestamp(), r.chain.balanceOf(r.contract.address)),
			PerformData: []byte{},
		}
	})
}

// Balance returns the pot held by the raffle.
func (r *Raffle) Balance(ctx context.Context) (*big.Int, error) {
	return r.chain.BalanceAt(ctx, r.contract.address, nil)
}

func (r *Raffle) Enter(ctx context.Context, value *big.Int) (*types.Receipt, error) {
	return r.chain.send(ctx, r.from, &r.contract.address, value, gasEnterRaffle, func(block blockContext) ([]*types.Log, error) {
		if block.value.Cmp(r.contract.entranceFee) < 0 {
			return nil, raffle.Revert(raffle.ErrNotEnoughETHEntered.Error())
		}
		if r.contract.state != raffle.StateOpen {
			return nil, raffle.Revert(raffle.ErrStateNotOpen.Error())
		}

		log, err := raffle.NewLog(raffle.RaffleABI, r.contract.address, raffle.EventRaffleEnter, block.from)
		if err != nil {
			return nil, err
		}

		r.chain.transfer(block.from, r.contract.address, block.value)
		r.contract.players = append(r.contract.players, block.from)
		return []*types.Log{log}, nil
	})
}

// PerformUpkeep closes entry and requests randomness from the coordinator.
func (r *Raffle) PerformUpkeep(ctx context.Context, performData []byte) (*types.Receipt, error) {
	return r.chain.send(ctx, r.from, &r.contract.address, nil, gasPerformUpkeep, func(block blockContext) ([]*types.Log, error) {
		balance := r.chain.balanceOf(r.contract.address)
		if !r.contract.upkeepNeeded(block.timestamp, balance) {
			return nil, raffle.UpkeepNotNeeded(balance, big.NewInt(int64(len(r.contract.players))), r.contract.state)
		}

		coordinator, ok := r.chain.coordinators[r.contract.coordinator]
		if !ok {
			return nil, raffle.Revert("function call to a non-contract account")
		}
		if err := coordinator.checkRequest(r.contract.address, r.contract.subscriptionID); err != nil {
			return nil, err
		}

		requestID, requestLog, err := coordinator.requestRandomWords(r.contract.address, r.contract.gasLane,
			r.contract.subscriptionID, raffle.RequestConfirmations, r.contract.callbackGasLimit, raffle.NumWords)
		if err != nil {
			return nil, err
		}
		winnerLog, err := raffle.NewLog(raffle.RaffleABI, r.contract.address, raffle.EventRequestedRaffleWinner, requestID)
		if err != nil {
			return nil, err
		}

		r.contract.state = raffle.StateCalculating
		return []*types.Log{requestLog, winnerLog}, nil
	})
}

// WatchWinnerPicked delivers WinnerPicked events until ctx is done or the subscription is
// closed. The sink must be drained: fulfilment blocks until every subscriber received the event.
func (r *Raffle) WatchWinnerPicked(ctx context.Context, sink chan<- *raffle.WinnerPickedEvent) (event.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := r.contract.winnerFeed.Subscribe(sink)
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.Err():
		}
	}()
	return sub, nil
}

func (rc *raffleContract) upkeepNeeded(timestamp uint64, balance *big.Int) bool {
	isOpen := rc.state == raffle.StateOpen
	elapsed := new(big.Int).SetUint64(timestamp - rc.lastTimestamp)
	timePassed := elapsed.Cmp(rc.interval) > 0
	hasPlayers := len(rc.players) > 0
	hasBalance := balance.Sign() > 0
	return isOpen && timePassed && hasPlayers && hasBalance
}

// fulfillRandomWords is the consumer callback invoked by the coordinator inside its
// transaction. It fails without changing state when there is nobody to pick.
func (rc *raffleContract) fulfillRandomWords(chain *Chain, block blockContext, caller common.Address, words []*big.Int) ([]*types.Log, error) {
	if caller != rc.coordinator {
		return nil, raffle.Revert(raffle.ErrOnlyCoordinator.Error(), caller, rc.coordinator)
	}
	if len(rc.players) == 0 {
		return nil, raffle.Panic(0x12)
	}

	index := new(big.Int).Mod(words[0], big.NewInt(int64(len(rc.players))))
	winner := rc.players[index.Int64()]

	log, err := raffle.NewLog(raffle.RaffleABI, rc.address, raffle.EventWinnerPicked, winner)
	if err != nil {
		return nil, err
	}

	rc.recentWinner = winner
	rc.state = raffle.StateOpen
	rc.players = nil
	rc.lastTimestamp = block.timestamp
	chain.transfer(rc.address, winner, chain.balanceOf(rc.address))

	chain.notify(func() {
		rc.winnerFeed.Send(&raffle.WinnerPickedEvent{Winner: winner, Raw: *log})
	})
	return []*types.Log{log}, nil
}

func view[T any](ctx context.Context, chain *Chain, read func() T) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	chain.mu.Lock()
	defer chain.mu.Unlock()
	return read(), nil
}
