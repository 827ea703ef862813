package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// logPollInterval is how often WinnerPicked logs are polled over connections without
// subscriptions.
var logPollInterval = 4 * time.Second

// Contract is a Go binding around a deployed Raffle contract.
type Contract struct {
	binding
}

var _ Lottery = (*Contract)(nil)

// NewContract binds a deployed Raffle. Transactions are signed by signer, which may be nil
// for read-only use.
func NewContract(address common.Address, backend Backend, signer Signer) (*Contract, error) {
	parsed, err := RaffleABI()
	if err != nil {
		return nil, err
	}

	return &Contract{binding: newBinding(address, parsed, backend, signer)}, nil
}

// Connect returns a copy of the binding that sends transactions from another account.
func (c *Contract) Connect(signer Signer) *Contract {
	connected := *c
	connected.signer = signer
	return &connected
}

func (c *Contract) EntranceFee(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getEntranceFee")
}

func (c *Contract) Interval(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getInterval")
}

func (c *Contract) NumWords(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getNumWords")
}

func (c *Contract) RequestConfirmations(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getRequestConfirmations")
}

func (c *Contract) NumberOfPlayers(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getNumberOfPlayers")
}

func (c *Contract) LatestTimestamp(ctx context.Context) (*big.Int, error) {
	return c.callBig(ctx, "getLatestTimestamp")
}

func (c *Contract) RaffleState(ctx context.Context) (State, error) {
	out, err := c.call(ctx, "getRaffleState")
	if err != nil {
		return 0, err
	}
	return State(*abi.ConvertType(out[0], new(uint8)).(*uint8)), nil
}

func (c *Contract) Player(ctx context.Context, index *big.Int) (common.Address, error) {
	return c.callAddress(ctx, "getPlayer", index)
}

func (c *Contract) RecentWinner(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "getRecentWinner")
}

// CheckUpkeep evaluates checkUpkeep as a static call.
func (c *Contract) CheckUpkeep(ctx context.Context, checkData []byte) (Upkeep, error) {
	if checkData == nil {
		checkData = []byte{}
	}

	out, err := c.call(ctx, "checkUpkeep", checkData)
	if err != nil {
		return Upkeep{}, err
	}
	if len(out) != 2 {
		return Upkeep{}, fmt.Errorf("checkUpkeep: expected 2 outputs, got %d", len(out))
	}

	return Upkeep{
		Needed:      *abi.ConvertType(out[0], new(bool)).(*bool),
		PerformData: *abi.ConvertType(out[1], new([]byte)).(*[]byte),
	}, nil
}

// Enter pays value into the raffle from the bound account.
func (c *Contract) Enter(ctx context.Context, value *big.Int) (*types.Receipt, error) {
	return c.transact(ctx, value, "enterRaffle")
}

// PerformUpkeep closes the round and requests randomness.
func (c *Contract) PerformUpkeep(ctx context.Context, performData []byte) (*types.Receipt, error) {
	if performData == nil {
		performData = []byte{}
	}
	return c.transact(ctx, nil, "performUpkeep", performData)
}

// WatchWinnerPicked subscribes to WinnerPicked events. Over HTTP, where the node cannot push
// notifications, new blocks are polled for the event instead.
func (c *Contract) WatchWinnerPicked(ctx context.Context, sink chan<- *WinnerPickedEvent) (event.Subscription, error) {
	logs, sub, err := c.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, EventWinnerPicked)
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		return c.pollWinnerPicked(ctx, sink)
	}
	if err != nil {
		return nil, err
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case log := <-logs:
				picked, err := ParseWinnerPicked(log)
				if err != nil {
					return err
				}
				select {
				case sink <- picked:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (c *Contract) pollWinnerPicked(ctx context.Context, sink chan<- *WinnerPickedEvent) (event.Subscription, error) {
	parsed, err := RaffleABI()
	if err != nil {
		return nil, err
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{parsed.Events[EventWinnerPicked].ID}},
	}
	// Logs up to and including the current head predate the subscription.
	next := head.Number.Uint64() + 1

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(logPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			latest, err := c.backend.HeaderByNumber(ctx, nil)
			if err != nil {
				return err
			}
			if latest.Number.Uint64() < next {
				continue
			}

			query.FromBlock = new(big.Int).SetUint64(next)
			query.ToBlock = new(big.Int).Set(latest.Number)
			logs, err := c.backend.FilterLogs(ctx, query)
			if err != nil {
				return err
			}
			next = latest.Number.Uint64() + 1

			for _, log := range logs {
				picked, err := ParseWinnerPicked(log)
				if err != nil {
					return err
				}
				select {
				case sink <- picked:
				case <-quit:
					return nil
				}
			}
		}
	}), nil
}
