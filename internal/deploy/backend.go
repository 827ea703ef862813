package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/raffle-dev/raffle-tooling/internal/chain"
	"github.com/raffle-dev/raffle-tooling/internal/contracts"
	"github.com/raffle-dev/raffle-tooling/internal/devnet"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

type (
	// ChainBackend deploys compiled bytecode over JSON-RPC.
	ChainBackend struct {
		client   *chain.Client
		signer   *chain.Signer
		compiled map[raffle.ContractName]contracts.CompiledContract
	}

	// DevnetBackend deploys into the in-process chain.
	DevnetBackend struct {
		chain *devnet.Chain
		from  common.Address
	}
)

var (
	_ Backend = (*ChainBackend)(nil)
	_ Backend = (*DevnetBackend)(nil)
)

func NewChainBackend(client *chain.Client, signer *chain.Signer, compiled map[raffle.ContractName]contracts.CompiledContract) *ChainBackend {
	return &ChainBackend{client: client, signer: signer, compiled: compiled}
}

func (b *ChainBackend) ChainID() uint64 {
	return b.client.ChainIDValue().Uint64()
}

func (b *ChainBackend) Deployer() common.Address {
	return b.signer.Address()
}

func (b *ChainBackend) DeployVRFCoordinatorMock(ctx context.Context, baseFee, gasPriceLink *big.Int) (raffle.VRFCoordinator, *types.Receipt, error) {
	compiled, err := b.contract(raffle.ContractNameVRFCoordinator)
	if err != nil {
		return nil, nil, err
	}
	return raffle.DeployVRFCoordinatorMock(ctx, b.client, b.signer, compiled.ABI, compiled.Bytecode, baseFee, gasPriceLink)
}

func (b *ChainBackend) DeployRaffle(ctx context.Context, args raffle.ConstructorArgs) (raffle.Lottery, *types.Receipt, error) {
	compiled, err := b.contract(raffle.ContractNameRaffle)
	if err != nil {
		return nil, nil, err
	}
	return raffle.DeployRaffle(ctx, b.client, b.signer, compiled.ABI, compiled.Bytecode, args)
}

func (b *ChainBackend) VRFCoordinatorAt(address common.Address) (raffle.VRFCoordinator, error) {
	return raffle.NewCoordinator(address, b.client, b.signer)
}

// ABI returns the compiled interface of a contract, compacted.
func (b *ChainBackend) ABI(name raffle.ContractName) (json.RawMessage, error) {
	compiled, err := b.contract(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(compiled.RawABI)); err != nil {
		return nil, fmt.Errorf("invalid ABI for %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (b *ChainBackend) contract(name raffle.ContractName) (contracts.CompiledContract, error) {
	compiled, ok := b.compiled[name]
	if !ok {
		return contracts.CompiledContract{}, fmt.Errorf("%w: %s", contracts.ErrMissingContract, name)
	}
	return compiled, nil
}

func NewDevnetBackend(chain *devnet.Chain, from common.Address) *DevnetBackend {
	return &DevnetBackend{chain: chain, from: from}
}

func (b *DevnetBackend) ChainID() uint64 {
	return b.chain.ChainID()
}

func (b *DevnetBackend) Deployer() common.Address {
	return b.from
}

func (b *DevnetBackend) DeployVRFCoordinatorMock(ctx context.Context, baseFee, gasPriceLink *big.Int) (raffle.VRFCoordinator, *types.Receipt, error) {
	return b.chain.DeployVRFCoordinatorMock(ctx, b.from, baseFee, gasPriceLink)
}

func (b *DevnetBackend) DeployRaffle(ctx context.Context, args raffle.ConstructorArgs) (raffle.Lottery, *types.Receipt, error) {
	return b.chain.DeployRaffle(ctx, b.from, args)
}

func (b *DevnetBackend) ABI(name raffle.ContractName) (json.RawMessage, error) {
	return raffle.RawABI(name)
}

func (b *DevnetBackend) VRFCoordinatorAt(address common.Address) (raffle.VRFCoordinator, error) {
	coordinator, ok := b.chain.CoordinatorAt(address, b.from)
	if !ok {
		return nil, fmt.Errorf("no %s deployed at %s", raffle.ContractNameVRFCoordinator, address)
	}
	return coordinator, nil
}
