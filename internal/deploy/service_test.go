package deploy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/contracts"
	"github.com/raffle-dev/raffle-tooling/internal/deployments"
	"github.com/raffle-dev/raffle-tooling/internal/devnet"
	"github.com/raffle-dev/raffle-tooling/internal/gasreport"
	"github.com/raffle-dev/raffle-tooling/internal/output"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exportCall struct {
	chainID uint64
	address common.Address
	abi     json.RawMessage
}

type fakeExporter struct {
	calls []exportCall
}

func (f *fakeExporter) Export(chainID uint64, address common.Address, abi json.RawMessage) error {
	f.calls = append(f.calls, exportCall{chainID: chainID, address: address, abi: abi})
	return nil
}

// compiledBackend deploys into the devnet but reports the ABI of a compiled artifact, the way
// ChainBackend does.
type compiledBackend struct {
	*DevnetBackend
	compiled *ChainBackend
}

func (b compiledBackend) ABI(name raffle.ContractName) (json.RawMessage, error) {
	return b.compiled.ABI(name)
}

func testConfig(t *testing.T) configs.Config {
	t.Helper()
	cfg, err := configs.DefaultConfig()
	require.NoError(t, err)
	return cfg
}

func allTags() mapset.Set[Tag] {
	return mapset.NewSet(TagAll)
}

func TestDeployDevelopmentChain(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.FrontEnd.Update = true

	chain := devnet.New(configs.LocalChainID)
	deployer := chain.Accounts()[0]
	store := deployments.NewMemoryStore()
	exporter := &fakeExporter{}
	gas := gasreport.NewReporter(configs.GasReporter{Enabled: true}, cfg.Solidity.Version)
	outputPath := filepath.Join(t.TempDir(), output.FileName)

	service := NewService(cfg, configs.NetworkNameHardhat, NewDevnetBackend(chain, deployer), store, exporter, gas, output.NewGenerator(outputPath))
	result, err := service.Deploy(ctx, allTags())
	require.NoError(t, err)

	require.NotNil(t, result.Raffle)
	require.NotNil(t, result.Coordinator)
	assert.Equal(t, configs.LocalChainID, result.ChainID)
	assert.Equal(t, uint64(1), result.SubscriptionID)

	coordinator, ok := result.Coordinator.(*devnet.Coordinator)
	require.True(t, ok)
	added, err := coordinator.ConsumerIsAdded(ctx, result.SubscriptionID, result.Raffle.Address())
	require.NoError(t, err)
	assert.True(t, added)

	sub, err := coordinator.Subscription(ctx, result.SubscriptionID)
	require.NoError(t, err)
	fund, err := cfg.Mocks.SubFundAmountWei()
	require.NoError(t, err)
	assert.Equal(t, 0, sub.Balance.Cmp(fund))
	assert.Equal(t, deployer, sub.Owner)

	record, err := store.Get(raffle.ContractNameRaffle)
	require.NoError(t, err)
	assert.Equal(t, result.Raffle.Address(), record.Address)
	assert.Equal(t, []string{
		coordinator.Address().Hex(),
		"10000000000000000",
		"0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c",
		"1",
		"500000",
		"30",
	}, record.Args)
	assert.NotZero(t, record.BlockNumber)

	chainID, err := store.ChainID()
	require.NoError(t, err)
	assert.Equal(t, configs.LocalChainID, chainID)

	require.Len(t, exporter.calls, 1)
	assert.Equal(t, configs.LocalChainID, exporter.calls[0].chainID)
	assert.Equal(t, result.Raffle.Address(), exporter.calls[0].address)
	assert.NotEmpty(t, exporter.calls[0].abi)

	fee, err := result.Raffle.EntranceFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000", fee.String())

	summary, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "raffle:")
	assert.Contains(t, string(summary), "vrfcoordinatorv2mock:")
}

func TestDeployFrontendDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.FrontEnd.Update = false

	chain := devnet.New(configs.LocalChainID)
	exporter := &fakeExporter{}
	service := NewService(cfg, configs.NetworkNameHardhat, NewDevnetBackend(chain, chain.Accounts()[0]), deployments.NewMemoryStore(), exporter, nil, nil)

	_, err := service.Deploy(context.Background(), allTags())
	require.NoError(t, err)
	assert.Empty(t, exporter.calls)
}

func TestDeployRaffleTagNeedsMocks(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	chain := devnet.New(configs.LocalChainID)
	backend := NewDevnetBackend(chain, chain.Accounts()[0])
	store := deployments.NewMemoryStore()

	service := NewService(cfg, configs.NetworkNameHardhat, backend, store, nil, nil, nil)

	_, err := service.Deploy(ctx, mapset.NewSet(TagRaffle))
	require.ErrorIs(t, err, deployments.ErrNotFound)

	mocks, err := service.Deploy(ctx, mapset.NewSet(TagMocks))
	require.NoError(t, err)
	require.NotNil(t, mocks.Coordinator)
	assert.Nil(t, mocks.Raffle)

	result, err := service.Deploy(ctx, mapset.NewSet(TagRaffle))
	require.NoError(t, err)
	assert.Equal(t, mocks.Coordinator.Address(), result.Coordinator.Address())
}

func TestDeployLiveNetwork(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	sepolia, err := cfg.Network(configs.NetworkNameSepolia)
	require.NoError(t, err)

	// A chain with the live chain id stands in for the network; the coordinator is deployed
	// ahead of time the way it exists on a real testnet.
	chain := devnet.New(sepolia.ChainID)
	deployer := chain.Accounts()[0]
	existing, _, err := chain.DeployVRFCoordinatorMock(ctx, deployer, common.Big1, common.Big1)
	require.NoError(t, err)

	params := cfg.Raffle["11155111"]
	params.VRFCoordinator = existing.Address().Hex()
	params.SubscriptionID = 42
	cfg.Raffle["11155111"] = params

	store := deployments.NewMemoryStore()
	service := NewService(cfg, configs.NetworkNameSepolia, NewDevnetBackend(chain, deployer), store, nil, nil, nil)

	result, err := service.Deploy(ctx, allTags())
	require.NoError(t, err)
	assert.Nil(t, result.Coordinator)
	assert.Equal(t, uint64(42), result.SubscriptionID)

	_, err = store.Get(raffle.ContractNameVRFCoordinator)
	assert.ErrorIs(t, err, deployments.ErrNotFound, "mocks are not deployed on live networks")

	record, err := store.Get(raffle.ContractNameRaffle)
	require.NoError(t, err)
	require.NotEmpty(t, record.Args)
	assert.Equal(t, existing.Address().Hex(), record.Args[0])
}

func TestDeployUnknownChain(t *testing.T) {
	cfg := testConfig(t)
	chain := devnet.New(5)
	service := NewService(cfg, configs.NetworkNameHardhat, NewDevnetBackend(chain, chain.Accounts()[0]), deployments.NewMemoryStore(), nil, nil, nil)

	_, err := service.Deploy(context.Background(), allTags())
	assert.ErrorContains(t, err, "no raffle parameters configured for chain 5")
}

func TestParseTags(t *testing.T) {
	tags, err := ParseTags(nil)
	require.NoError(t, err)
	assert.True(t, tags.Equal(mapset.NewSet(TagAll)))

	tags, err = ParseTags([]string{"mocks", "raffle", "mocks"})
	require.NoError(t, err)
	assert.True(t, tags.Equal(mapset.NewSet(TagMocks, TagRaffle)))

	_, err = ParseTags([]string{"verify"})
	assert.ErrorContains(t, err, "unknown deploy tag 'verify'")
}

func TestDeployRecordsCompiledABI(t *testing.T) {
	cfg := testConfig(t)
	cfg.FrontEnd.Update = true

	artifactABI := `[
  {"type": "function", "name": "enterRaffle", "stateMutability": "payable", "inputs": [], "outputs": []},
  {"type": "function", "name": "addedAfterRelease", "stateMutability": "view", "inputs": [], "outputs": []}
]`
	compiled := NewChainBackend(nil, nil, map[raffle.ContractName]contracts.CompiledContract{
		raffle.ContractNameRaffle:         {RawABI: artifactABI},
		raffle.ContractNameVRFCoordinator: {RawABI: `[]`},
	})

	chain := devnet.New(configs.LocalChainID)
	backend := compiledBackend{DevnetBackend: NewDevnetBackend(chain, chain.Accounts()[0]), compiled: compiled}
	store := deployments.NewMemoryStore()
	exporter := &fakeExporter{}

	_, err := NewService(cfg, configs.NetworkNameHardhat, backend, store, exporter, nil, nil).Deploy(context.Background(), allTags())
	require.NoError(t, err)

	record, err := store.Get(raffle.ContractNameRaffle)
	require.NoError(t, err)
	assert.JSONEq(t, artifactABI, string(record.ABI))
	assert.NotContains(t, string(record.ABI), "\n", "the stored ABI is compact")

	require.Len(t, exporter.calls, 1)
	assert.JSONEq(t, artifactABI, string(exporter.calls[0].abi))

	mock, err := store.Get(raffle.ContractNameVRFCoordinator)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(mock.ABI))
}

func TestChainBackendABI(t *testing.T) {
	backend := NewChainBackend(nil, nil, map[raffle.ContractName]contracts.CompiledContract{
		raffle.ContractNameRaffle: {RawABI: "[\n  {\"type\": \"fallback\"}\n]"},
		"Broken":                  {RawABI: "[{"},
	})

	abi, err := backend.ABI(raffle.ContractNameRaffle)
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"fallback"}]`, string(abi))

	_, err = backend.ABI(raffle.ContractNameVRFCoordinator)
	assert.ErrorIs(t, err, contracts.ErrMissingContract)

	_, err = backend.ABI("Broken")
	assert.ErrorContains(t, err, "invalid ABI for Broken")
}
