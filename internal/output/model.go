package output

import (
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Network   string                    `yaml:"network"`
		ChainID   uint64                    `yaml:"chain-id"`
		RPCURL    string                    `yaml:"rpc-url,omitempty"`
		Raffle    RaffleConfig              `yaml:"raffle"`
		Contracts map[string]ContractConfig `yaml:"contracts"`
	}

	RaffleConfig struct {
		EntranceFee      string `yaml:"entrance-fee"`
		Interval         uint64 `yaml:"interval"`
		SubscriptionID   uint64 `yaml:"subscription-id"`
		CallbackGasLimit uint32 `yaml:"callback-gas-limit"`
		GasLane          string `yaml:"gas-lane"`
	}

	ContractConfig struct {
		Address         common.Address     `yaml:"address"`
		TransactionHash string             `yaml:"transaction-hash,omitempty"`
		BlockNumber     uint64             `yaml:"block-number,omitempty"`
		ABI             SingleQuotedString `yaml:"abi"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
