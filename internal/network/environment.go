// Package network opens the selected network for a command: the in-process development
// chain or a JSON-RPC node, with its deployment records and gas reporter.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/chain"
	"github.com/raffle-dev/raffle-tooling/internal/deployments"
	"github.com/raffle-dev/raffle-tooling/internal/devnet"
	"github.com/raffle-dev/raffle-tooling/internal/gasreport"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

// ErrInProcess is returned for operations that need state persisted between runs, which the
// in-process network does not keep.
var ErrInProcess = errors.New("the in-process network keeps no state between runs; use 'simulate' or the localhost network")

type Environment struct {
	cfg     configs.Config
	name    configs.NetworkName
	network configs.Network

	devnet *devnet.Chain
	client *chain.Client
	store  *deployments.Store
	gas    *gasreport.Reporter
	logger *slog.Logger
}

// Open connects to the network named by cfg.DefaultNetwork.
func Open(ctx context.Context, cfg configs.Config) (*Environment, error) {
	name := cfg.DefaultNetwork
	network, err := cfg.Network(name)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		cfg:     cfg,
		name:    name,
		network: network,
		gas:     gasreport.NewReporter(cfg.GasReporter, cfg.Solidity.Version),
		logger:  logger.Named("network").With("network", name),
	}

	if network.InProcess() {
		env.devnet = devnet.NewFromConfig(cfg, network)
		env.store = deployments.NewMemoryStore()
		env.logger.With("chain_id", network.ChainID).Info("using in-process network")
		return env, nil
	}

	client, err := chain.Dial(ctx, network)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network '%s': %w", name, err)
	}
	env.client = client
	env.store = deployments.NewStore(cfg.Paths.Deployments, name)

	return env, nil
}

// Close disconnects and writes the gas report.
func (e *Environment) Close() error {
	if e.client != nil {
		e.client.Close()
	}
	return e.gas.Write()
}

func (e *Environment) Config() configs.Config { return e.cfg }
func (e *Environment) Name() configs.NetworkName { return e.name }
func (e *Environment) Network() configs.Network { return e.network }
func (e *Environment) Store() *deployments.Store { return e.store }
func (e *Environment) Gas() *gasreport.Reporter { return e.gas }
func (e *Environment) Devnet() *devnet.Chain { return e.devnet }
func (e *Environment) Client() *chain.Client { return e.client }
func (e *Environment) Development() bool { return e.cfg.IsDevelopment(e.name) }
func (e *Environment) InProcess() bool { return e.devnet != nil }

func (e *Environment) ChainID() uint64 {
	if e.client != nil {
		return e.client.ChainIDValue().Uint64()
	}
	return e.devnet.ChainID()
}

// BalanceAt reads an account balance at a block, or at the latest block when block is nil.
func (e *Environment) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	if e.client != nil {
		return e.client.BalanceAt(ctx, account, block)
	}
	return e.devnet.BalanceAt(ctx, account, block)
}

// Signer returns the JSON-RPC signer of a named account.
func (e *Environment) Signer(account configs.AccountName) (*chain.Signer, error) {
	if e.InProcess() {
		return nil, fmt.Errorf("signer for '%s': %w", account, ErrInProcess)
	}
	return chain.NamedSigner(e.cfg, e.network, account)
}

// Account resolves a named account to its address.
func (e *Environment) Account(account configs.AccountName) (common.Address, error) {
	if e.InProcess() {
		index, err := e.cfg.AccountIndex(account)
		if err != nil {
			return common.Address{}, err
		}
		return e.devnet.Account(index)
	}

	signer, err := e.Signer(account)
	if err != nil {
		return common.Address{}, err
	}
	return signer.Address(), nil
}

// Lottery binds the deployed raffle to a named account.
func (e *Environment) Lottery(account configs.AccountName) (raffle.Lottery, error) {
	if e.InProcess() {
		return nil, ErrInProcess
	}

	record, err := e.store.Get(raffle.ContractNameRaffle)
	if err != nil {
		return nil, err
	}
	signer, err := e.Signer(account)
	if err != nil {
		return nil, err
	}

	e.logger.With("address", record.Address.Hex()).Debug("raffle loaded from deployments")
	return raffle.NewContract(record.Address, e.client, signer)
}

// Coordinator binds the deployed VRF mock on development chains. Live networks have no mock
// and get nil.
func (e *Environment) Coordinator(account configs.AccountName) (raffle.VRFCoordinator, error) {
	if e.InProcess() {
		return nil, ErrInProcess
	}
	if !e.Development() {
		return nil, nil
	}

	record, err := e.store.Get(raffle.ContractNameVRFCoordinator)
	if err != nil {
		return nil, err
	}
	signer, err := e.Signer(account)
	if err != nil {
		return nil, err
	}
	return raffle.NewCoordinator(record.Address, e.client, signer)
}
