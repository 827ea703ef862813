package network

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/devnet"
	"github.com/raffle-dev/raffle-tooling/internal/gasreport"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInProcessNetwork(t *testing.T) {
	ctx := context.Background()
	cfg := configs.MustDefaultConfig()
	cfg.GasReporter.Enabled = true
	cfg.GasReporter.OutputFile = filepath.Join(t.TempDir(), "gas-report.txt")

	env, err := Open(ctx, cfg)
	require.NoError(t, err)

	assert.True(t, env.InProcess())
	assert.True(t, env.Development())
	assert.Nil(t, env.Client())
	assert.Equal(t, configs.NetworkNameHardhat, env.Name())
	assert.Equal(t, configs.LocalChainID, env.ChainID())

	deployer, err := env.Account(configs.AccountNameDeployer)
	require.NoError(t, err)
	assert.Equal(t, env.Devnet().Accounts()[0], deployer)
	player, err := env.Account(configs.AccountNamePlayer)
	require.NoError(t, err)
	assert.Equal(t, env.Devnet().Accounts()[1], player)

	balance, err := env.BalanceAt(ctx, player, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(devnet.DefaultBalance))

	_, err = env.Lottery(configs.AccountNameDeployer)
	assert.ErrorIs(t, err, ErrInProcess)
	_, err = env.Coordinator(configs.AccountNameDeployer)
	assert.ErrorIs(t, err, ErrInProcess)
	_, err = env.Signer(configs.AccountNameDeployer)
	assert.ErrorIs(t, err, ErrInProcess)

	_, receipt, err := env.Devnet().DeployVRFCoordinatorMock(ctx, deployer, big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)
	env.Gas().Record(raffle.ContractNameVRFCoordinator, gasreport.MethodDeployment, receipt)

	require.NoError(t, env.Close())
	report, err := os.ReadFile(cfg.GasReporter.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(report), string(raffle.ContractNameVRFCoordinator))
}

func TestOpenUnknownNetwork(t *testing.T) {
	cfg := configs.MustDefaultConfig()
	cfg.DefaultNetwork = "mainnet"

	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "network 'mainnet' is not configured")
}
