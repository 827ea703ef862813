package raffle

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	data any
}

func (e dataError) Error() string  { return "execution reverted" }
func (e dataError) ErrorData() any { return e.data }

func customErrorData(t *testing.T, load func() (abi.ABI, error), name string, args ...any) []byte {
	t.Helper()
	parsed, err := load()
	require.NoError(t, err)
	customErr, ok := parsed.Errors[name]
	require.True(t, ok, "unknown error %s", name)

	packed, err := customErr.Inputs.Pack(args...)
	require.NoError(t, err)
	return append(customErr.ID[:4:4], packed...)
}

func requireMessage(t *testing.T, reason string) []byte {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

func TestDecodeRevertData(t *testing.T) {
	t.Run("custom error without arguments", func(t *testing.T) {
		err := DecodeRevertData(customErrorData(t, RaffleABI, "Raffle__NotEnoughETHEntered"))
		assert.ErrorIs(t, err, ErrNotEnoughETHEntered)
		assert.ErrorIs(t, err, ErrReverted)
	})

	t.Run("upkeep not needed carries the raffle view", func(t *testing.T) {
		data := customErrorData(t, RaffleABI, "Raffle__UpkeepNotNeeded", big.NewInt(10), big.NewInt(1), big.NewInt(1))
		err := DecodeRevertData(data)
		require.ErrorIs(t, err, ErrUpkeepNotNeeded)

		var upkeepErr *UpkeepNotNeededError
		require.True(t, errors.As(err, &upkeepErr))
		assert.Equal(t, int64(10), upkeepErr.Balance.Int64())
		assert.Equal(t, int64(1), upkeepErr.Players.Int64())
		assert.Equal(t, StateCalculating, upkeepErr.State)
	})

	t.Run("coordinator error with arguments", func(t *testing.T) {
		owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		err := DecodeRevertData(customErrorData(t, CoordinatorABI, "MustBeSubOwner", owner))
		assert.ErrorIs(t, err, ErrMustBeSubOwner)
		assert.ErrorContains(t, err, owner.Hex())
	})

	t.Run("require message", func(t *testing.T) {
		err := DecodeRevertData(requireMessage(t, "nonexistent request"))
		assert.ErrorIs(t, err, ErrNonexistentRequest)
		assert.EqualError(t, err, "execution reverted: nonexistent request")
	})

	t.Run("array index panic", func(t *testing.T) {
		data := append(crypto.Keccak256([]byte("Panic(uint256)"))[:4], common.BigToHash(big.NewInt(0x32)).Bytes()...)
		err := DecodeRevertData(data)
		assert.ErrorIs(t, err, ErrIndexOutOfBounds)
		assert.ErrorIs(t, err, ErrReverted)
	})

	t.Run("unknown data", func(t *testing.T) {
		assert.NoError(t, DecodeRevertData([]byte{0xde, 0xad, 0xbe, 0xef}))
		assert.NoError(t, DecodeRevertData([]byte{0x01}))
	})
}

func TestDecodeRevert(t *testing.T) {
	data := customErrorData(t, RaffleABI, "Raffle__StateNotOpen")

	err := DecodeRevert(dataError{data: hexutil.Encode(data)})
	assert.ErrorIs(t, err, ErrStateNotOpen)

	err = DecodeRevert(dataError{data: data})
	assert.ErrorIs(t, err, ErrStateNotOpen)

	plain := errors.New("connection refused")
	assert.Same(t, plain, DecodeRevert(plain))

	undecodable := dataError{data: 42}
	assert.Equal(t, undecodable, DecodeRevert(undecodable))

	assert.NoError(t, DecodeRevert(nil))
}
