package raffle

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrReverted is matched by every decoded contract revert.
var ErrReverted = errors.New("execution reverted")

var (
	ErrNotEnoughETHEntered = errors.New("Raffle__NotEnoughETHEntered")
	ErrStateNotOpen        = errors.New("Raffle__StateNotOpen")
	ErrUpkeepNotNeeded     = errors.New("Raffle__UpkeepNotNeeded")
	ErrTransferFailed      = errors.New("Raffle__TransferFailed")
	ErrOnlyCoordinator     = errors.New("OnlyCoordinatorCanFulfill")

	ErrNonexistentRequest  = errors.New("nonexistent request")
	ErrInsufficientBalance = errors.New("InsufficientBalance")
	ErrInvalidConsumer     = errors.New("InvalidConsumer")
	ErrInvalidRandomWords  = errors.New("InvalidRandomWords")
	ErrInvalidSubscription = errors.New("InvalidSubscription")
	ErrMustBeSubOwner      = errors.New("MustBeSubOwner")
	ErrTooManyConsumers    = errors.New("TooManyConsumers")

	ErrIndexOutOfBounds = errors.New("array index out of bounds")
)

var sentinels = map[string]error{
	ErrNotEnoughETHEntered.Error(): ErrNotEnoughETHEntered,
	ErrStateNotOpen.Error():        ErrStateNotOpen,
	ErrUpkeepNotNeeded.Error():     ErrUpkeepNotNeeded,
	ErrTransferFailed.Error():      ErrTransferFailed,
	ErrOnlyCoordinator.Error():     ErrOnlyCoordinator,
	ErrNonexistentRequest.Error():  ErrNonexistentRequest,
	ErrInsufficientBalance.Error(): ErrInsufficientBalance,
	ErrInvalidConsumer.Error():     ErrInvalidConsumer,
	ErrInvalidRandomWords.Error():  ErrInvalidRandomWords,
	ErrInvalidSubscription.Error(): ErrInvalidSubscription,
	ErrMustBeSubOwner.Error():      ErrMustBeSubOwner,
	ErrTooManyConsumers.Error():    ErrTooManyConsumers,
}

var panicSelector = crypto.Keccak256([]byte("Panic(uint256)"))[:4]

// RevertError is a decoded contract revert: a custom error, a require message or a panic.
type RevertError struct {
	Reason string
	Args   []any
	kind   error
}

// Revert builds the error a contract raises for the named custom error or require message.
func Revert(reason string, args ...any) *RevertError {
	return &RevertError{Reason: reason, Args: args, kind: sentinels[reason]}
}

// Panic builds the error raised by a Solidity panic code.
func Panic(code uint64) *RevertError {
	err := &RevertError{Reason: fmt.Sprintf("panic code 0x%02x", code)}
	if code == 0x32 {
		err.kind = ErrIndexOutOfBounds
	}
	return err
}

func (e *RevertError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("execution reverted: %s", e.Reason)
	}

	args := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		args = append(args, fmt.Sprint(arg))
	}
	return fmt.Sprintf("execution reverted: %s(%s)", e.Reason, strings.Join(args, ", "))
}

func (e *RevertError) Unwrap() []error {
	if e.kind == nil {
		return []error{ErrReverted}
	}
	return []error{ErrReverted, e.kind}
}

// UpkeepNotNeededError carries the raffle's view of why performUpkeep was refused.
type UpkeepNotNeededError struct {
	Balance *big.Int
	Players *big.Int
	State   State
}

// UpkeepNotNeeded builds the revert raised by performUpkeep when checkUpkeep is false.
func UpkeepNotNeeded(balance, players *big.Int, state State) *UpkeepNotNeededError {
	return &UpkeepNotNeededError{Balance: balance, Players: players, State: state}
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("execution reverted: %s(%s, %s, %d)", ErrUpkeepNotNeeded, e.Balance, e.Players, e.State)
}

func (e *UpkeepNotNeededError) Unwrap() []error {
	return []error{ErrReverted, ErrUpkeepNotNeeded}
}

// DecodeRevert replaces a JSON-RPC error carrying revert data with the typed contract error.
// Errors without decodable revert data are returned unchanged.
func DecodeRevert(err error) error {
	if err == nil {
		return nil
	}

	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return err
	}

	data, ok := revertData(dataErr.ErrorData())
	if !ok {
		return err
	}

	if decoded := DecodeRevertData(data); decoded != nil {
		return decoded
	}

	return err
}

// DecodeRevertData decodes raw revert bytes against the raffle and coordinator interfaces.
// It returns nil when the data matches nothing known.
func DecodeRevertData(data []byte) error {
	if len(data) < 4 {
		return nil
	}

	if bytes.Equal(data[:4], panicSelector) && len(data) >= 36 {
		return Panic(new(big.Int).SetBytes(data[4:36]).Uint64())
	}

	if reason, err := abi.UnpackRevert(data); err == nil {
		return Revert(reason)
	}

	for _, load := range []func() (abi.ABI, error){RaffleABI, CoordinatorABI} {
		parsed, err := load()
		if err != nil {
			continue
		}

		for name, customErr := range parsed.Errors {
			if !bytes.Equal(data[:4], customErr.ID[:4]) {
				continue
			}

			args, err := customErr.Inputs.Unpack(data[4:])
			if err != nil {
				return nil
			}

			if name == ErrUpkeepNotNeeded.Error() && len(args) == 3 {
				balance, _ := args[0].(*big.Int)
				players, _ := args[1].(*big.Int)
				state, _ := args[2].(*big.Int)
				if balance != nil && players != nil && state != nil {
					return UpkeepNotNeeded(balance, players, State(state.Uint64()))
				}
			}

			return Revert(name, args...)
		}
	}

	return nil
}

func revertData(value any) ([]byte, bool) {
	switch data := value.(type) {
	case string:
		decoded, err := hexutil.Decode(data)
		return decoded, err == nil
	case []byte:
		return data, true
	default:
		return nil, false
	}
}
