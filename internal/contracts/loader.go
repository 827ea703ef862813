package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	fsjson "github.com/raffle-dev/raffle-tooling/internal/infra/filesystem/json"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

var ErrMissingContract = errors.New("contract missing from artifacts")

type artifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"`
}

// LoadCompiledContracts loads the compiled contracts written by the compiler into dir.
// Every contract the tooling deploys must be present.
func LoadCompiledContracts(dir string) (map[raffle.ContractName]CompiledContract, error) {
	var result map[string]artifact
	if err := fsjson.NewReader().ReadJSON(filepath.Join(dir, ArtifactsFileName), &result); err != nil {
		return nil, fmt.Errorf("failed to read compiled contracts: %w", err)
	}

	return parseContracts(result)
}

func parseContracts(result map[string]artifact) (map[raffle.ContractName]CompiledContract, error) {
	loadedContracts := make(map[raffle.ContractName]CompiledContract)

	for name, contract := range result {
		if _, ok := Contracts[raffle.ContractName(name)]; !ok {
			continue
		}

		parsedABI, err := abi.JSON(strings.NewReader(string(contract.ABI)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
		}

		bytecode, err := hexutil.Decode(ensureHexPrefix(strings.TrimSpace(contract.Bytecode)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode bytecode for %s: %w", name, err)
		}
		if len(bytecode) == 0 {
			return nil, fmt.Errorf("empty bytecode for %s", name)
		}

		loadedContracts[raffle.ContractName(name)] = CompiledContract{
			ABI:      parsedABI,
			RawABI:   string(contract.ABI),
			Bytecode: bytecode,
		}
	}

	for name := range Contracts {
		if _, ok := loadedContracts[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingContract, name)
		}
	}

	return loadedContracts, nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
