package contracts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/raffle-dev/raffle-tooling/internal/infra/docker"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawABI(t *testing.T, name raffle.ContractName) json.RawMessage {
	t.Helper()
	raw, err := raffle.RawABI(name)
	require.NoError(t, err)
	return raw
}

func writeArtifacts(t *testing.T, dir string, artifacts map[string]artifact) {
	t.Helper()
	data, err := json.Marshal(artifacts)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ArtifactsFileName), data, 0644))
}

func TestLoadCompiledContracts(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, map[string]artifact{
		"Raffle":               {ABI: rawABI(t, raffle.ContractNameRaffle), Bytecode: "0x6080"},
		"VRFCoordinatorV2Mock": {ABI: rawABI(t, raffle.ContractNameVRFCoordinator), Bytecode: "6080604052"},
		"Unrelated":            {ABI: json.RawMessage(`[]`), Bytecode: "0x00"},
	})

	loaded, err := LoadCompiledContracts(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	raffleContract := loaded[raffle.ContractNameRaffle]
	assert.Equal(t, []byte{0x60, 0x80}, raffleContract.Bytecode)
	assert.Contains(t, raffleContract.ABI.Methods, "enterRaffle")
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, loaded[raffle.ContractNameVRFCoordinator].Bytecode)
}

func TestLoadCompiledContractsErrors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadCompiledContracts(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("missing_contract", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, map[string]artifact{
			"Raffle": {ABI: rawABI(t, raffle.ContractNameRaffle), Bytecode: "0x6080"},
		})
		_, err := LoadCompiledContracts(dir)
		assert.ErrorIs(t, err, ErrMissingContract)
	})

	t.Run("empty_bytecode", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, map[string]artifact{
			"Raffle":               {ABI: rawABI(t, raffle.ContractNameRaffle), Bytecode: "0x"},
			"VRFCoordinatorV2Mock": {ABI: rawABI(t, raffle.ContractNameVRFCoordinator), Bytecode: "0x6080"},
		})
		_, err := LoadCompiledContracts(dir)
		assert.ErrorContains(t, err, "empty bytecode")
	})
}

type fakeRunner struct {
	output string
	image  string
	opts   docker.RunOptions
}

func (f *fakeRunner) EnsureImage(_ context.Context, imageName string) error {
	f.image = imageName
	return nil
}

func (f *fakeRunner) Run(_ context.Context, opts docker.RunOptions) (string, error) {
	f.opts = opts
	return f.output, nil
}

func combinedJSON(t *testing.T) string {
	t.Helper()
	raffleABI, err := json.Marshal(string(rawABI(t, raffle.ContractNameRaffle)))
	require.NoError(t, err)

	return `{"contracts":{` +
		`"contracts/Raffle.sol:Raffle":{"abi":` + string(raffleABI) + `,"bin":"6080"},` +
		`"contracts/test/VRFCoordinatorV2MockImport.sol:VRFCoordinatorV2Mock":{"abi":` + string(rawABI(t, raffle.ContractNameVRFCoordinator)) + `,"bin":"6081"},` +
		`"@chainlink/contracts/src/v0.8/vrf/VRFConsumerBaseV2.sol:VRFConsumerBaseV2":{"abi":[],"bin":""}` +
		`},"version":"0.8.24+commit.e11b9ed9"}`
}

func TestCompile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "contracts", "test"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "contracts", "Raffle.sol"), []byte("// raffle"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "contracts", "test", "VRFCoordinatorV2MockImport.sol"), []byte("// mock"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "contracts", "README.md"), []byte("not a source"), 0644))

	runner := &fakeRunner{output: combinedJSON(t)}
	compiler := NewCompiler(runner, root, "contracts", "artifacts", "0.8.24")

	require.NoError(t, compiler.Compile(context.Background()))

	assert.Equal(t, "ethereum/solc:0.8.24", runner.image)
	assert.NotNil(t, runner.opts.Archive)
	assert.Equal(t, "/sources", runner.opts.ArchiveDir)
	assert.Contains(t, runner.opts.Cmd, "/sources/contracts/Raffle.sol")
	assert.Contains(t, runner.opts.Cmd, "/sources/contracts/test/VRFCoordinatorV2MockImport.sol")
	assert.NotContains(t, runner.opts.Cmd, "/sources/contracts/README.md")

	loaded, err := LoadCompiledContracts(filepath.Join(root, "artifacts"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, loaded[raffle.ContractNameRaffle].Bytecode)
	assert.Equal(t, []byte{0x60, 0x81}, loaded[raffle.ContractNameVRFCoordinator].Bytecode)
}

func TestCompileWithoutSources(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "contracts"), 0755))

	err := NewCompiler(&fakeRunner{}, root, "contracts", "artifacts", "0.8.24").Compile(context.Background())
	assert.ErrorContains(t, err, "no Solidity sources")
}
