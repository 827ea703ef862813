package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
)

// ArtifactsFileName is the file the compiler writes under the artifacts directory.
const ArtifactsFileName = "contracts.json"

type CompiledContract struct {
	ABI      abi.ABI
	RawABI   string
	Bytecode []byte
}

// Contracts are the contracts the tooling deploys.
var Contracts = map[raffle.ContractName]struct{}{
	raffle.ContractNameRaffle:         {},
	raffle.ContractNameVRFCoordinator: {},
}
