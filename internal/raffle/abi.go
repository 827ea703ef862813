package raffle

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type ContractName string

const (
	ContractNameRaffle         ContractName = "Raffle"
	ContractNameVRFCoordinator ContractName = "VRFCoordinatorV2Mock"
)

//go:embed abi/*.json
var abiFS embed.FS

var (
	raffleABI      = sync.OnceValues(func() (abi.ABI, error) { return parseEmbedded(ContractNameRaffle) })
	coordinatorABI = sync.OnceValues(func() (abi.ABI, error) { return parseEmbedded(ContractNameVRFCoordinator) })
)

// RaffleABI returns the parsed Raffle interface.
func RaffleABI() (abi.ABI, error) {
	return raffleABI()
}

// CoordinatorABI returns the parsed VRFCoordinatorV2Mock interface.
func CoordinatorABI() (abi.ABI, error) {
	return coordinatorABI()
}

// RawABI returns the compact JSON interface of a contract, as written for front ends.
func RawABI(name ContractName) (json.RawMessage, error) {
	data, err := abiFS.ReadFile(fmt.Sprintf("abi/%s.json", name))
	if err != nil {
		return nil, fmt.Errorf("failed to read ABI for %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to compact ABI for %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

func parseEmbedded(name ContractName) (abi.ABI, error) {
	data, err := RawABI(name)
	if err != nil {
		return abi.ABI{}, err
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}

	return parsed, nil
}
