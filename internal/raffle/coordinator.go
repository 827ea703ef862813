package raffle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Coordinator is a Go binding around a deployed VRFCoordinatorV2Mock.
type Coordinator struct {
	binding
}

var _ VRFCoordinator = (*Coordinator)(nil)

func NewCoordinator(address common.Address, backend Backend, signer Signer) (*Coordinator, error) {
	parsed, err := CoordinatorABI()
	if err != nil {
		return nil, err
	}

	return &Coordinator{binding: newBinding(address, parsed, backend, signer)}, nil
}

// CreateSubscription opens a subscription owned by the bound account and returns its id.
func (c *Coordinator) CreateSubscription(ctx context.Context) (uint64, *types.Receipt, error) {
	receipt, err := c.transact(ctx, nil, "createSubscription")
	if err != nil {
		return 0, receipt, err
	}

	subID, err := SubscriptionIDFromReceipt(receipt)
	if err != nil {
		return 0, receipt, err
	}

	return subID, receipt, nil
}

func (c *Coordinator) FundSubscription(ctx context.Context, subID uint64, amount *big.Int) (*types.Receipt, error) {
	return c.transact(ctx, nil, "fundSubscription", subID, amount)
}

func (c *Coordinator) AddConsumer(ctx context.Context, subID uint64, consumer common.Address) (*types.Receipt, error) {
	return c.transact(ctx, nil, "addConsumer", subID, consumer)
}

// FulfillRandomWords answers a pending request, calling back into consumer.
func (c *Coordinator) FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer common.Address) (*types.Receipt, error) {
	return c.transact(ctx, nil, "fulfillRandomWords", requestID, consumer)
}
