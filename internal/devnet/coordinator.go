package devnet

import (
	"context"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

const maxConsumers = 100

const (
	gasDeployCoordinator  = 2_458_000
	gasCreateSubscription = 68_000
	gasFundSubscription   = 29_800
	gasAddConsumer        = 71_000
	gasFulfillRandomWords = 112_000
)

type (
	coordinatorContract struct {
		address      common.Address
		baseFee      *big.Int
		gasPriceLink *big.Int

		currentSubID uint64
		nextRequest  uint64
		subs         map[uint64]*subscription
		requests     map[uint64]*randomnessRequest
	}

	subscription struct {
		owner     common.Address
		balance   *big.Int
		consumers []common.Address
	}

	randomnessRequest struct {
		subID            uint64
		callbackGasLimit uint32
		numWords         uint32
	}

	// Subscription is the coordinator's view of a subscription (getSubscription).
	Subscription struct {
		Balance   *big.Int
		Owner     common.Address
		Consumers []common.Address
	}

	// Coordinator is a VRFCoordinatorV2Mock hosted on the chain, bound to a sending account.
	Coordinator struct {
		chain    *Chain
		contract *coordinatorContract
		from     common.Address
	}
)

var _ raffle.VRFCoordinator = (*Coordinator)(nil)

func (c *Coordinator) Address() common.Address {
	return c.contract.address
}

// Connect returns the same coordinator with transactions sent from another account.
func (c *Coordinator) Connect(from common.Address) *Coordinator {
	return &Coordinator{chain: c.chain, contract: c.contract, from: from}
}

func (c *Coordinator) CreateSubscription(ctx context.Context) (uint64, *types.Receipt, error) {
	var subID uint64
	receipt, err := c.chain.send(ctx, c.from, &c.contract.address, nil, gasCreateSubscription, func(block blockContext) ([]*types.Log, error) {
		c.contract.currentSubID++
		subID = c.contract.currentSubID
		c.contract.subs[subID] = &subscription{owner: block.from, balance: new(big.Int)}

		log, err := raffle.NewLog(raffle.CoordinatorABI, c.contract.address, raffle.EventSubscriptionCreated, subID, block.from)
		if err != nil {
			return nil, err
		}
		return []*types.Log{log}, nil
	})
	if err != nil {
		return 0, nil, err
	}
	return subID, receipt, nil
}

// FundSubscription credits a subscription; the mock does not move LINK.
func (c *Coordinator) FundSubscription(ctx context.Context, subID uint64, amount *big.Int) (*types.Receipt, error) {
	return c.chain.send(ctx, c.from, &c.contract.address, nil, gasFundSubscription, func(blockContext) ([]*types.Log, error) {
		sub, ok := c.contract.subs[subID]
		if !ok {
			return nil, raffle.Revert(raffle.ErrInvalidSubscription.Error())
		}

		oldBalance := sub.balance
		newBalance := new(big.Int).Add(oldBalance, amount)
		log, err := raffle.NewLog(raffle.CoordinatorABI, c.contract.address, raffle.EventSubscriptionFunded, subID, oldBalance, newBalance)
		if err != nil {
			return nil, err
		}

		sub.balance = newBalance
		return []*types.Log{log}, nil
	})
}

func (c *Coordinator) AddConsumer(ctx context.Context, subID uint64, consumer common.Address) (*types.Receipt, error) {
	return c.chain.send(ctx, c.from, &c.contract.address, nil, gasAddConsumer, func(block blockContext) ([]*types.Log, error) {
		sub, ok := c.contract.subs[subID]
		if !ok {
			return nil, raffle.Revert(raffle.ErrInvalidSubscription.Error())
		}
		if sub.owner != block.from {
			return nil, raffle.Revert(raffle.ErrMustBeSubOwner.Error(), sub.owner)
		}
		if slices.Contains(sub.consumers, consumer) {
			return nil, nil
		}
		if len(sub.consumers) >= maxConsumers {
			return nil, raffle.Revert(raffle.ErrTooManyConsumers.Error())
		}

		log, err := raffle.NewLog(raffle.CoordinatorABI, c.contract.address, raffle.EventConsumerAdded, subID, consumer)
		if err != nil {
			return nil, err
		}

		sub.consumers = append(sub.consumers, consumer)
		return []*types.Log{log}, nil
	})
}

// FulfillRandomWords answers a pending request and calls back the consumer. A failing
// callback does not revert; it is reported through the success flag of RandomWordsFulfilled.
func (c *Coordinator) FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer common.Address) (*types.Receipt, error) {
	return c.chain.send(ctx, c.from, &c.contract.address, nil, gasFulfillRandomWords, func(block blockContext) ([]*types.Log, error) {
		if !requestID.IsUint64() {
			return nil, raffle.Revert(raffle.ErrNonexistentRequest.Error())
		}
		req, ok := c.contract.requests[requestID.Uint64()]
		if !ok {
			return nil, raffle.Revert(raffle.ErrNonexistentRequest.Error())
		}

		payment := new(big.Int).Mul(c.contract.gasPriceLink, new(big.Int).SetUint64(c.chain.fulfillGas))
		payment.Add(payment, c.contract.baseFee)

		sub := c.contract.subs[req.subID]
		if sub.balance.Cmp(payment) < 0 {
			return nil, raffle.Revert(raffle.ErrInsufficientBalance.Error())
		}

		words := randomWords(requestID, req.numWords)

		var logs []*types.Log
		success := false
		if target, ok := c.chain.raffles[consumer]; ok {
			callbackLogs, err := target.fulfillRandomWords(c.chain, block, c.contract.address, words)
			if err == nil {
				success = true
				logs = append(logs, callbackLogs...)
			}
		}

		log, err := raffle.NewLog(raffle.CoordinatorABI, c.contract.address, raffle.EventRandomWordsFulfilled, requestID, requestID, payment, success)
		if err != nil {
			return nil, err
		}

		sub.balance = new(big.Int).Sub(sub.balance, payment)
		delete(c.contract.requests, requestID.Uint64())
		return append(logs, log), nil
	})
}

// Subscription returns the state of a subscription.
func (c *Coordinator) Subscription(ctx context.Context, subID uint64) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}

	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()

	sub, ok := c.contract.subs[subID]
	if !ok {
		return Subscription{}, raffle.Revert(raffle.ErrInvalidSubscription.Error())
	}
	return Subscription{
		Balance:   new(big.Int).Set(sub.balance),
		Owner:     sub.owner,
		Consumers: slices.Clone(sub.consumers),
	}, nil
}

// ConsumerIsAdded reports whether consumer may request randomness on subID.
func (c *Coordinator) ConsumerIsAdded(ctx context.Context, subID uint64, consumer common.Address) (bool, error) {
	sub, err := c.Subscription(ctx, subID)
	if err != nil {
		return false, err
	}
	return slices.Contains(sub.Consumers, consumer), nil
}

// checkRequest validates a randomness request without changing state.
func (cc *coordinatorContract) checkRequest(sender common.Address, subID uint64) error {
	sub, ok := cc.subs[subID]
	if !ok {
		return raffle.Revert(raffle.ErrInvalidSubscription.Error())
	}
	if !slices.Contains(sub.consumers, sender) {
		return raffle.Revert(raffle.ErrInvalidConsumer.Error())
	}
	return nil
}

// requestRandomWords records a request that passed checkRequest and returns its id together
// with the RandomWordsRequested log.
func (cc *coordinatorContract) requestRandomWords(sender common.Address, keyHash common.Hash, subID uint64, confirmations uint16, callbackGasLimit, numWords uint32) (*big.Int, *types.Log, error) {
	requestID := new(big.Int).SetUint64(cc.nextRequest + 1)
	log, err := raffle.NewLog(raffle.CoordinatorABI, cc.address, raffle.EventRandomWordsRequested,
		[32]byte(keyHash), requestID, requestID, subID, confirmations, callbackGasLimit, numWords, sender)
	if err != nil {
		return nil, nil, err
	}

	cc.nextRequest++
	cc.requests[cc.nextRequest] = &randomnessRequest{subID: subID, callbackGasLimit: callbackGasLimit, numWords: numWords}
	return requestID, log, nil
}

// randomWords derives word i as keccak256(abi.encode(requestId, i)).
func randomWords(requestID *big.Int, n uint32) []*big.Int {
	words := make([]*big.Int, n)
	id := common.BigToHash(requestID)
	for i := range words {
		index := common.BigToHash(big.NewInt(int64(i)))
		words[i] = new(big.Int).SetBytes(crypto.Keccak256(id.Bytes(), index.Bytes()))
	}
	return words
}
