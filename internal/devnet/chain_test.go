package devnet

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountsAreFundedAndDistinct(t *testing.T) {
	chain := New(31337, WithAccounts(5))
	accounts := chain.Accounts()
	require.Len(t, accounts, 5)

	seen := make(map[string]bool)
	for _, account := range accounts {
		assert.False(t, seen[account.Hex()], "duplicate account %s", account)
		seen[account.Hex()] = true

		balance, err := chain.BalanceAt(context.Background(), account, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, balance.Cmp(DefaultBalance))
	}

	assert.Equal(t, accounts, New(31337, WithAccounts(5)).Accounts(), "accounts are deterministic")

	_, err := chain.Account(5)
	assert.Error(t, err)
}

func TestBlocksAndTime(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	chain := New(31337, WithGenesisTime(genesis))
	assert.Equal(t, uint64(0), chain.BlockNumber())
	assert.Equal(t, uint64(genesis.Unix()), chain.Timestamp())

	chain.Mine()
	assert.Equal(t, uint64(1), chain.BlockNumber())
	assert.Equal(t, uint64(genesis.Unix())+1, chain.Timestamp())

	chain.IncreaseTime(30)
	chain.Mine()
	assert.Equal(t, uint64(2), chain.BlockNumber())
	assert.Equal(t, uint64(genesis.Unix())+32, chain.Timestamp())

	chain.Mine()
	assert.Equal(t, uint64(genesis.Unix())+33, chain.Timestamp(), "time offset applies once")
}

func TestDeploymentAddressesFollowNonces(t *testing.T) {
	ctx := context.Background()
	chain := New(31337)
	deployer := chain.Accounts()[0]

	coordinator, receipt, err := chain.DeployVRFCoordinatorMock(ctx, deployer, big.NewInt(1), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(deployer, 0), coordinator.Address())
	assert.Equal(t, coordinator.Address(), receipt.ContractAddress)
	assert.Zero(t, receipt.EffectiveGasPrice.Sign())
	assert.Positive(t, receipt.GasUsed)

	deployed, _, err := chain.DeployRaffle(ctx, deployer, raffle.ConstructorArgs{
		VRFCoordinator: coordinator.Address(),
		EntranceFee:    big.NewInt(1),
		Interval:       big.NewInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(deployer, 1), deployed.Address())

	bound, ok := chain.RaffleAt(deployed.Address(), chain.Accounts()[1])
	require.True(t, ok)
	assert.Equal(t, chain.Accounts()[1], bound.Sender())

	_, ok = chain.CoordinatorAt(deployed.Address(), deployer)
	assert.False(t, ok)
}

func TestSubscriptionOwnership(t *testing.T) {
	ctx := context.Background()
	chain := New(31337)
	accounts := chain.Accounts()

	coordinator, _, err := chain.DeployVRFCoordinatorMock(ctx, accounts[0], big.NewInt(1), big.NewInt(1))
	require.NoError(t, err)
	subID, _, err := coordinator.CreateSubscription(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), subID)

	_, err = coordinator.Connect(accounts[1]).AddConsumer(ctx, subID, accounts[2])
	assert.ErrorIs(t, err, raffle.ErrMustBeSubOwner)

	_, err = coordinator.AddConsumer(ctx, subID+1, accounts[2])
	assert.ErrorIs(t, err, raffle.ErrInvalidSubscription)

	receipt, err := coordinator.AddConsumer(ctx, subID, accounts[2])
	require.NoError(t, err)
	assert.Len(t, receipt.Logs, 1)

	receipt, err = coordinator.AddConsumer(ctx, subID, accounts[2])
	require.NoError(t, err)
	assert.Empty(t, receipt.Logs, "adding a consumer twice is a no-op")

	added, err := coordinator.ConsumerIsAdded(ctx, subID, accounts[2])
	require.NoError(t, err)
	assert.True(t, added)
}

func TestSendWithoutFunds(t *testing.T) {
	ctx := context.Background()
	chain := New(31337, WithAccounts(1))
	deployer := chain.Accounts()[0]

	_, _, err := chain.DeployVRFCoordinatorMock(ctx, deployer, big.NewInt(1), big.NewInt(1))
	require.NoError(t, err)
	deployed, _, err := chain.DeployRaffle(ctx, deployer, raffle.ConstructorArgs{
		EntranceFee: big.NewInt(1),
		Interval:    big.NewInt(1),
	})
	require.NoError(t, err)

	tooMuch := new(big.Int).Add(DefaultBalance, big.NewInt(1))
	_, err = deployed.Enter(ctx, tooMuch)
	assert.ErrorContains(t, err, "doesn't have enough funds")
}

func TestBalanceAtHistoricalBlocks(t *testing.T) {
	ctx := context.Background()
	chain := New(31337, WithAccounts(2))
	deployer, player := chain.Accounts()[0], chain.Accounts()[1]

	_, _, err := chain.DeployVRFCoordinatorMock(ctx, deployer, big.NewInt(1), big.NewInt(1))
	require.NoError(t, err)
	deployed, _, err := chain.DeployRaffle(ctx, deployer, raffle.ConstructorArgs{
		EntranceFee: big.NewInt(1e16),
		Interval:    big.NewInt(30),
	})
	require.NoError(t, err)

	receipt, err := deployed.Connect(player).Enter(ctx, big.NewInt(1e16))
	require.NoError(t, err)
	chain.Mine()

	before, err := chain.BalanceAt(ctx, player, new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1)))
	require.NoError(t, err)
	assert.Equal(t, 0, before.Cmp(DefaultBalance))

	after, err := chain.BalanceAt(ctx, player, receipt.BlockNumber)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Cmp(new(big.Int).Sub(DefaultBalance, big.NewInt(1e16))))

	pot, err := chain.BalanceAt(ctx, deployed.Address(), big.NewInt(0))
	require.NoError(t, err)
	assert.Zero(t, pot.Sign())

	_, err = chain.BalanceAt(ctx, player, big.NewInt(int64(chain.BlockNumber())+1))
	assert.ErrorContains(t, err, "not found")
}
