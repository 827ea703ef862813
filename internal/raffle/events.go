package raffle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	EventRaffleEnter           = "RaffleEnter"
	EventRequestedRaffleWinner = "RequestedRaffleWinner"
	EventWinnerPicked          = "WinnerPicked"

	EventSubscriptionCreated  = "SubscriptionCreated"
	EventSubscriptionFunded   = "SubscriptionFunded"
	EventConsumerAdded        = "ConsumerAdded"
	EventRandomWordsRequested = "RandomWordsRequested"
	EventRandomWordsFulfilled = "RandomWordsFulfilled"
)

var ErrEventNotFound = errors.New("event not found in receipt")

type (
	// RaffleEnterEvent is emitted for every accepted entry.
	RaffleEnterEvent struct {
		Player common.Address
		Raw    types.Log
	}

	// RequestedRaffleWinnerEvent is emitted by performUpkeep with the oracle request id.
	RequestedRaffleWinnerEvent struct {
		RequestId *big.Int
		Raw       types.Log
	}

	// WinnerPickedEvent is emitted once randomness is fulfilled and the pot is paid.
	WinnerPickedEvent struct {
		Winner common.Address
		Raw    types.Log
	}

	SubscriptionCreatedEvent struct {
		SubId uint64
		Owner common.Address
		Raw   types.Log
	}

	RandomWordsRequestedEvent struct {
		KeyHash                     [32]byte
		RequestId                   *big.Int
		PreSeed                     *big.Int
		SubId                       uint64
		MinimumRequestConfirmations uint16
		CallbackGasLimit            uint32
		NumWords                    uint32
		Sender                      common.Address
		Raw                         types.Log
	}

	RandomWordsFulfilledEvent struct {
		RequestId  *big.Int
		OutputSeed *big.Int
		Payment    *big.Int
		Success    bool
		Raw        types.Log
	}
)

func ParseRaffleEnter(log types.Log) (*RaffleEnterEvent, error) {
	event := new(RaffleEnterEvent)
	if err := unpackLog(RaffleABI, event, EventRaffleEnter, log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

func ParseRequestedRaffleWinner(log types.Log) (*RequestedRaffleWinnerEvent, error) {
	event := new(RequestedRaffleWinnerEvent)
	if err := unpackLog(RaffleABI, event, EventRequestedRaffleWinner, log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

func ParseWinnerPicked(log types.Log) (*WinnerPickedEvent, error) {
	event := new(WinnerPickedEvent)
	if err := unpackLog(RaffleABI, event, EventWinnerPicked, log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

func ParseSubscriptionCreated(log types.Log) (*SubscriptionCreatedEvent, error) {
	event := new(SubscriptionCreatedEvent)
	if err := unpackLog(CoordinatorABI, event, EventSubscriptionCreated, log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

func ParseRandomWordsRequested(log types.Log) (*RandomWordsRequestedEvent, error) {
	event := new(RandomWordsRequestedEvent)
	if err := unpackLog(CoordinatorABI, event, EventRandomWordsRequested, log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

func ParseRandomWordsFulfilled(log types.Log) (*RandomWordsFulfilledEvent, error) {
	event := new(RandomWordsFulfilledEvent)
	if err := unpackLog(CoordinatorABI, event, EventRandomWordsFulfilled, log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}

// RequestIDFromReceipt extracts the oracle request id from a performUpkeep receipt.
// The coordinator's RandomWordsRequested log precedes the raffle's own event, so the log is
// located by topic rather than by position.
func RequestIDFromReceipt(receipt *types.Receipt) (*big.Int, error) {
	if receipt == nil {
		return nil, fmt.Errorf("%w: nil receipt", ErrEventNotFound)
	}

	parsed, err := RaffleABI()
	if err != nil {
		return nil, err
	}
	topic := parsed.Events[EventRequestedRaffleWinner].ID

	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) == 0 || log.Topics[0] != topic {
			continue
		}
		event, err := ParseRequestedRaffleWinner(*log)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", EventRequestedRaffleWinner, err)
		}
		return event.RequestId, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrEventNotFound, EventRequestedRaffleWinner)
}

// SubscriptionIDFromReceipt extracts the id of a subscription created on the VRF mock.
func SubscriptionIDFromReceipt(receipt *types.Receipt) (uint64, error) {
	if receipt == nil {
		return 0, fmt.Errorf("%w: nil receipt", ErrEventNotFound)
	}

	parsed, err := CoordinatorABI()
	if err != nil {
		return 0, err
	}
	topic := parsed.Events[EventSubscriptionCreated].ID

	for _, log := range receipt.Logs {
		if log == nil || len(log.Topics) == 0 || log.Topics[0] != topic {
			continue
		}
		event, err := ParseSubscriptionCreated(*log)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s: %w", EventSubscriptionCreated, err)
		}
		return event.SubId, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrEventNotFound, EventSubscriptionCreated)
}

// NewLog ABI-encodes an event emitted by address. Arguments are given in declaration order,
// indexed ones included.
func NewLog(load func() (abi.ABI, error), address common.Address, event string, args ...any) (*types.Log, error) {
	parsed, err := load()
	if err != nil {
		return nil, err
	}

	ev, ok := parsed.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown event %s", event)
	}
	if len(args) != len(ev.Inputs) {
		return nil, fmt.Errorf("event %s takes %d arguments, got %d", event, len(ev.Inputs), len(args))
	}

	topics := []common.Hash{ev.ID}
	var data []any
	for i, input := range ev.Inputs {
		if !input.Indexed {
			data = append(data, args[i])
			continue
		}
		encoded, err := abi.MakeTopics([]any{args[i]})
		if err != nil {
			return nil, fmt.Errorf("failed to encode topic %s of %s: %w", input.Name, event, err)
		}
		topics = append(topics, encoded[0][0])
	}

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", event, err)
	}

	return &types.Log{Address: address, Topics: topics, Data: packed}, nil
}

func unpackLog(load func() (abi.ABI, error), out any, event string, log types.Log) error {
	parsed, err := load()
	if err != nil {
		return err
	}

	ev, ok := parsed.Events[event]
	if !ok {
		return fmt.Errorf("unknown event %s", event)
	}
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return fmt.Errorf("event signature mismatch for %s", event)
	}

	if len(log.Data) > 0 {
		if err := parsed.UnpackIntoInterface(out, event, log.Data); err != nil {
			return err
		}
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	return abi.ParseTopics(out, indexed, log.Topics[1:])
}
