package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments", "localhost", FileName)
	address := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	err := NewGenerator(path).Generate(Model{
		Network: "localhost",
		ChainID: 31337,
		Raffle:  RaffleConfig{EntranceFee: "10000000000000000", Interval: 30, SubscriptionID: 1},
		Contracts: map[string]ContractConfig{
			"Raffle": {Address: address, ABI: SingleQuotedString("[\n  {\"type\": \"fallback\"}\n]")},
		},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `abi: '[{"type":"fallback"}]'`)

	var decoded struct {
		ChainID   uint64 `yaml:"chain-id"`
		Contracts map[string]struct {
			Address string `yaml:"address"`
		} `yaml:"contracts"`
	}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, uint64(31337), decoded.ChainID)
	require.Contains(t, decoded.Contracts, "raffle")
	assert.Equal(t, address, common.HexToAddress(decoded.Contracts["raffle"].Address))
}
