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

// DeployRaffle deploys compiled Raffle bytecode and binds the new contract to signer. The
// constructor arguments are packed with parsed, the ABI compiled alongside bytecode.
func DeployRaffle(ctx context.Context, backend Backend, signer Signer, parsed abi.ABI, bytecode []byte, args ConstructorArgs) (*Contract, *types.Receipt, error) {
	address, receipt, err := deploy(ctx, backend, signer, parsed, bytecode, args.Values()...)
	if err != nil {
		return nil, receipt, fmt.Errorf("failed to deploy %s: %w", ContractNameRaffle, err)
	}

	contract, err := NewContract(address, backend, signer)
	if err != nil {
		return nil, receipt, err
	}

	return contract, receipt, nil
}

// DeployVRFCoordinatorMock deploys the oracle mock used on development chains.
func DeployVRFCoordinatorMock(ctx context.Context, backend Backend, signer Signer, parsed abi.ABI, bytecode []byte, baseFee, gasPriceLink *big.Int) (*Coordinator, *types.Receipt, error) {
	address, receipt, err := deploy(ctx, backend, signer, parsed, bytecode, baseFee, gasPriceLink)
	if err != nil {
		return nil, receipt, fmt.Errorf("failed to deploy %s: %w", ContractNameVRFCoordinator, err)
	}

	coordinator, err := NewCoordinator(address, backend, signer)
	if err != nil {
		return nil, receipt, err
	}

	return coordinator, receipt, nil
}

func deploy(ctx context.Context, backend Backend, signer Signer, parsed abi.ABI, bytecode []byte, args ...any) (common.Address, *types.Receipt, error) {
	if signer == nil {
		return common.Address{}, nil, ErrNoSigner
	}
	if len(bytecode) == 0 {
		return common.Address{}, nil, errors.New("empty bytecode")
	}

	auth, err := signer.TransactOpts(ctx)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	address, tx, _, err := bind.DeployContract(auth, parsed, bytecode, backend, args...)
	if err != nil {
		return common.Address{}, nil, DecodeRevert(err)
	}

	receipt, err := backend.WaitConfirmed(ctx, tx)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to wait for deployment %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, receipt, fmt.Errorf("contract deployment failed with status %d", receipt.Status)
	}

	return address, receipt, nil
}
