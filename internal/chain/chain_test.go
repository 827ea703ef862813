package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	firstKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	secondKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

func TestNamedSigner(t *testing.T) {
	cfg := configs.MustDefaultConfig()
	network := configs.Network{ChainID: 31337, Accounts: []string{firstKey, " ", secondKey}}

	deployer, err := NamedSigner(cfg, network, configs.AccountNameDeployer)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), deployer.Address())

	player, err := NamedSigner(cfg, network, configs.AccountNamePlayer)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), player.Address(), "blank keys are skipped")

	opts, err := player.TransactOpts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, player.Address(), opts.From)

	t.Run("too few accounts", func(t *testing.T) {
		_, err := NamedSigner(cfg, configs.Network{ChainID: 31337, Accounts: []string{firstKey}}, configs.AccountNamePlayer)
		assert.ErrorContains(t, err, "uses index 1 but the network has 1 accounts")
	})

	t.Run("no accounts", func(t *testing.T) {
		_, err := NamedSigner(cfg, configs.Network{ChainID: 31337}, configs.AccountNameDeployer)
		assert.ErrorContains(t, err, "no accounts configured")
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := NamedSigner(cfg, network, "owner")
		assert.ErrorContains(t, err, "named account 'owner' is not configured")
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := NewSigner("0x1234", big.NewInt(1))
		assert.ErrorContains(t, err, "failed to parse private key")
	})
}

func TestFormatETH(t *testing.T) {
	assert.Equal(t, "0.0100 ETH (10000000000000000 wei)", FormatETH(big.NewInt(1e16)))
	assert.Equal(t, "10000.0000 ETH (10000000000000000000000 wei)", FormatETH(new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18))))
	assert.Equal(t, "unavailable", FormatETH(nil))
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), configs.Network{ChainID: 31337})
	assert.ErrorContains(t, err, "has no RPC url")
}
