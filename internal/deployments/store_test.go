package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDeployment() Deployment {
	return Deployment{
		Address:         common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		ABI:             json.RawMessage(`[]`),
		TransactionHash: common.HexToHash("0x01"),
		BlockNumber:     3,
		GasUsed:         1200000,
		Args:            []string{"0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", "10000000000000000"},
		DeployedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, "localhost")

	require.NoError(t, store.Save(raffle.ContractNameRaffle, sampleDeployment()))
	require.NoError(t, store.SaveChainID(31337))
	assert.FileExists(t, filepath.Join(root, "localhost", "Raffle.json"))

	reopened := NewStore(root, "localhost")
	got, err := reopened.Get(raffle.ContractNameRaffle)
	require.NoError(t, err)
	assert.Equal(t, sampleDeployment().Address, got.Address)
	assert.Equal(t, uint64(3), got.BlockNumber)
	assert.True(t, sampleDeployment().DeployedAt.Equal(got.DeployedAt))

	chainID, err := reopened.ChainID()
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), chainID)

	raw, err := os.ReadFile(filepath.Join(root, "localhost", ".chainId"))
	require.NoError(t, err)
	assert.Equal(t, "31337", string(raw))
}

func TestStoreNotFound(t *testing.T) {
	_, err := NewStore(t.TempDir(), "sepolia").Get(raffle.ContractNameRaffle)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewMemoryStore().Get(raffle.ContractNameVRFCoordinator)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewMemoryStore().ChainID()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	store := NewMemoryStore()
	require.NoError(t, store.Save(raffle.ContractNameRaffle, sampleDeployment()))

	got, err := store.Get(raffle.ContractNameRaffle)
	require.NoError(t, err)
	assert.Equal(t, sampleDeployment().Address, got.Address)
	assert.Empty(t, store.Dir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
