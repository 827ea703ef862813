package devnet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

// DeployVRFCoordinatorMock deploys a VRFCoordinatorV2Mock from an account.
func (c *Chain) DeployVRFCoordinatorMock(ctx context.Context, from common.Address, baseFee, gasPriceLink *big.Int) (*Coordinator, *types.Receipt, error) {
	var contract *coordinatorContract
	receipt, err := c.send(ctx, from, nil, nil, gasDeployCoordinator, func(block blockContext) ([]*types.Log, error) {
		contract = &coordinatorContract{
			address:      c.nextContractAddress(block.from),
			baseFee:      new(big.Int).Set(baseFee),
			gasPriceLink: new(big.Int).Set(gasPriceLink),
			subs:         make(map[uint64]*subscription),
			requests:     make(map[uint64]*randomnessRequest),
		}
		c.coordinators[contract.address] = contract
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	c.logger.With("address", contract.address.Hex()).Debug("VRF coordinator mock deployed")
	return &Coordinator{chain: c, contract: contract, from: from}, receipt, nil
}

// DeployRaffle deploys a raffle from an account. The deployment block's timestamp starts the
// first interval.
func (c *Chain) DeployRaffle(ctx context.Context, from common.Address, args raffle.ConstructorArgs) (*Raffle, *types.Receipt, error) {
	var contract *raffleContract
	receipt, err := c.send(ctx, from, nil, nil, gasDeployRaffle, func(block blockContext) ([]*types.Log, error) {
		contract = &raffleContract{
			address:          c.nextContractAddress(block.from),
			coordinator:      args.VRFCoordinator,
			entranceFee:      new(big.Int).Set(args.EntranceFee),
			gasLane:          args.GasLane,
			subscriptionID:   args.SubscriptionID,
			callbackGasLimit: args.CallbackGasLimit,
			interval:         new(big.Int).Set(args.Interval),
			state:            raffle.StateOpen,
			lastTimestamp:    block.timestamp,
		}
		c.raffles[contract.address] = contract
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	c.logger.With("address", contract.address.Hex()).Debug("raffle deployed")
	return &Raffle{chain: c, contract: contract, from: from}, receipt, nil
}

// RaffleAt binds a deployed raffle to an account.
func (c *Chain) RaffleAt(address, from common.Address) (*Raffle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	contract, ok := c.raffles[address]
	if !ok {
		return nil, false
	}
	return &Raffle{chain: c, contract: contract, from: from}, true
}

// CoordinatorAt binds a deployed coordinator mock to an account.
func (c *Chain) CoordinatorAt(address, from common.Address) (*Coordinator, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	contract, ok := c.coordinators[address]
	if !ok {
		return nil, false
	}
	return &Coordinator{chain: c, contract: contract, from: from}, true
}
