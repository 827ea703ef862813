package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrNoSigner = errors.New("binding has no signer")

type (
	// Backend is what the bindings need from a JSON-RPC connection.
	Backend interface {
		bind.ContractBackend
		WaitConfirmed(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	}

	// Signer produces transaction options for one account.
	Signer interface {
		Address() common.Address
		TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
	}

	// binding is the generic wrapper shared by the contract bindings.
	binding struct {
		address  common.Address
		contract *bind.BoundContract
		backend  Backend
		signer   Signer
	}
)

func newBinding(address common.Address, parsed abi.ABI, backend Backend, signer Signer) binding {
	return binding{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		signer:   signer,
	}
}

func (b *binding) Address() common.Address {
	return b.address
}

func (b *binding) Sender() common.Address {
	if b.signer == nil {
		return common.Address{}
	}
	return b.signer.Address()
}

func (b *binding) call(ctx context.Context, method string, params ...any) ([]any, error) {
	opts := &bind.CallOpts{Context: ctx, From: b.Sender()}

	var out []any
	if err := b.contract.Call(opts, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, DecodeRevert(err))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}

	return out, nil
}

func (b *binding) callBig(ctx context.Context, method string, params ...any) (*big.Int, error) {
	out, err := b.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (b *binding) callAddress(ctx context.Context, method string, params ...any) (common.Address, error) {
	out, err := b.call(ctx, method, params...)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (b *binding) transact(ctx context.Context, value *big.Int, method string, params ...any) (*types.Receipt, error) {
	if b.signer == nil {
		return nil, fmt.Errorf("%s: %w", method, ErrNoSigner)
	}

	opts, err := b.signer.TransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor for %s: %w", method, err)
	}
	opts.Value = value

	tx, err := b.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, DecodeRevert(err))
	}

	receipt, err := b.backend.WaitConfirmed(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s transaction %s: %w", method, tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s: transaction %s failed: %w", method, tx.Hash().Hex(), ErrReverted)
	}

	return receipt, nil
}
