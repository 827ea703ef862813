package configs

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var Values Config

type (
	NetworkName  string
	AccountName  string
	RaffleChains map[string]RaffleParams

	Config struct {
		DefaultNetwork    NetworkName             `mapstructure:"default-network"`
		Networks          map[NetworkName]Network `mapstructure:"networks"`
		DevelopmentChains []NetworkName           `mapstructure:"development-chains"`
		Solidity          Solidity                `mapstructure:"solidity"`
		GasReporter       GasReporter             `mapstructure:"gas-reporter"`
		NamedAccounts     map[AccountName]int     `mapstructure:"named-accounts"`
		Raffle            RaffleChains            `mapstructure:"raffle"`
		Mocks             Mocks                   `mapstructure:"mocks"`
		FrontEnd          FrontEnd                `mapstructure:"front-end"`
		Paths             Paths                   `mapstructure:"paths"`
		Keeper            Keeper                  `mapstructure:"keeper"`
		Staging           Staging                 `mapstructure:"staging"`
		Node              Node                    `mapstructure:"node"`
	}

	Network struct {
		URL                string   `mapstructure:"url"`
		Accounts           []string `mapstructure:"accounts"`
		ChainID            uint64   `mapstructure:"chain-id"`
		BlockConfirmations uint64   `mapstructure:"block-confirmations"`
	}

	Solidity struct {
		Version string `mapstructure:"version"`
	}

	GasReporter struct {
		Enabled    bool   `mapstructure:"enabled"`
		OutputFile string `mapstructure:"output-file"`
		NoColors   bool   `mapstructure:"no-colors"`
		Currency   string `mapstructure:"currency"`
		Token      string `mapstructure:"token"`
	}

	// RaffleParams are the constructor arguments used when deploying the raffle to a chain.
	RaffleParams struct {
		Name             string `mapstructure:"name"`
		VRFCoordinator   string `mapstructure:"vrf-coordinator"`
		EntranceFee      string `mapstructure:"entrance-fee"`
		GasLane          string `mapstructure:"gas-lane"`
		SubscriptionID   uint64 `mapstructure:"subscription-id"`
		CallbackGasLimit uint32 `mapstructure:"callback-gas-limit"`
		Interval         uint64 `mapstructure:"interval"`
	}

	Mocks struct {
		BaseFee         string `mapstructure:"base-fee"`
		GasPriceLink    string `mapstructure:"gas-price-link"`
		SubFundAmount   string `mapstructure:"sub-fund-amount"`
		FulfillGasUsage uint64 `mapstructure:"fulfill-gas-usage"`
	}

	FrontEnd struct {
		Update        Toggle `mapstructure:"update"`
		AddressesFile string `mapstructure:"addresses-file"`
		ABIFile       string `mapstructure:"abi-file"`
	}

	Paths struct {
		Deployments string `mapstructure:"deployments"`
		Artifacts   string `mapstructure:"artifacts"`
		Contracts   string `mapstructure:"contracts"`
	}

	Keeper struct {
		PollInterval time.Duration `mapstructure:"poll-interval"`
		MetricsAddr  string        `mapstructure:"metrics-addr"`
	}

	Staging struct {
		Timeout time.Duration `mapstructure:"timeout"`
	}

	Node struct {
		Image         string `mapstructure:"image"`
		ContainerName string `mapstructure:"container-name"`
		Port          int    `mapstructure:"port"`
	}
)

const (
	NetworkNameHardhat   NetworkName = "hardhat"
	NetworkNameLocalhost NetworkName = "localhost"
	NetworkNameSepolia   NetworkName = "sepolia"

	AccountNameDeployer AccountName = "deployer"
	AccountNamePlayer   AccountName = "player"

	// LocalChainID is the chain id served by development nodes; the keeper only drives the
	// VRF mock there.
	LocalChainID uint64 = 31337
)

// IsDevelopment reports whether the named network is a development chain.
func (c Config) IsDevelopment(name NetworkName) bool {
	return mapset.NewSet(c.DevelopmentChains...).Contains(name)
}

// Network looks up a network by name.
func (c Config) Network(name NetworkName) (Network, error) {
	network, ok := c.Networks[name]
	if !ok {
		return Network{}, fmt.Errorf("network '%s' is not configured", name)
	}
	return network, nil
}

// RaffleFor returns the raffle parameters configured for a chain id.
func (c Config) RaffleFor(chainID uint64) (RaffleParams, error) {
	params, ok := c.Raffle[strconv.FormatUint(chainID, 10)]
	if !ok {
		return RaffleParams{}, fmt.Errorf("no raffle parameters configured for chain %d", chainID)
	}
	return params, nil
}

// AccountIndex resolves a named account to its index in the network's account list.
func (c Config) AccountIndex(name AccountName) (int, error) {
	index, ok := c.NamedAccounts[name]
	if !ok {
		return 0, fmt.Errorf("named account '%s' is not configured", name)
	}
	return index, nil
}

// InProcess reports whether the network is served by the in-process devnet instead of JSON-RPC.
func (n Network) InProcess() bool {
	return n.URL == ""
}

// EntranceFeeWei parses the entrance fee.
func (p RaffleParams) EntranceFeeWei() (*big.Int, error) {
	return parseWei("entrance-fee", p.EntranceFee)
}

// GasLaneHash parses the VRF key hash.
func (p RaffleParams) GasLaneHash() (common.Hash, error) {
	b, err := decodeHex32(p.GasLane)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid gas-lane: %w", err)
	}
	return b, nil
}

func (m Mocks) BaseFeeWei() (*big.Int, error) { return parseWei("base-fee", m.BaseFee) }

func (m Mocks) GasPriceLinkWei() (*big.Int, error) {
	return parseWei("gas-price-link", m.GasPriceLink)
}

func (m Mocks) SubFundAmountWei() (*big.Int, error) {
	return parseWei("sub-fund-amount", m.SubFundAmount)
}

func (c *Config) Validate() error {
	var errs []error

	if c.DefaultNetwork == "" {
		errs = append(errs, errors.New("default-network is required"))
	} else if _, ok := c.Networks[c.DefaultNetwork]; !ok {
		errs = append(errs, fmt.Errorf("default-network '%s' is not in networks", c.DefaultNetwork))
	}

	for name, network := range c.Networks {
		if network.ChainID == 0 {
			errs = append(errs, fmt.Errorf("networks.%s.chain-id is required", name))
		}
		if !c.IsDevelopment(name) {
			// Live networks are usually configured from the environment; only the selected one
			// must be reachable.
			if network.URL == "" && name == c.DefaultNetwork {
				errs = append(errs, fmt.Errorf("networks.%s.url is required", name))
			}
			if network.BlockConfirmations == 0 {
				errs = append(errs, fmt.Errorf("networks.%s.block-confirmations is required", name))
			}
		}
	}

	for _, name := range c.DevelopmentChains {
		if _, ok := c.Networks[name]; !ok {
			errs = append(errs, fmt.Errorf("development-chains entry '%s' is not in networks", name))
		}
	}

	if c.Solidity.Version == "" {
		errs = append(errs, errors.New("solidity.version is required"))
	}

	if c.GasReporter.Enabled && c.GasReporter.OutputFile == "" {
		errs = append(errs, errors.New("gas-reporter.output-file is required when the reporter is enabled"))
	}

	for _, name := range []AccountName{AccountNameDeployer, AccountNamePlayer} {
		index, ok := c.NamedAccounts[name]
		if !ok {
			errs = append(errs, fmt.Errorf("named-accounts.%s is required", name))
		} else if index < 0 {
			errs = append(errs, fmt.Errorf("named-accounts.%s must not be negative", name))
		}
	}

	for chainID, params := range c.Raffle {
		if _, err := strconv.ParseUint(chainID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("raffle.%s: key must be a chain id", chainID))
		}
		if _, err := params.EntranceFeeWei(); err != nil {
			errs = append(errs, fmt.Errorf("raffle.%s: %w", chainID, err))
		}
		if _, err := params.GasLaneHash(); err != nil {
			errs = append(errs, fmt.Errorf("raffle.%s: %w", chainID, err))
		}
		if params.CallbackGasLimit == 0 {
			errs = append(errs, fmt.Errorf("raffle.%s.callback-gas-limit is required", chainID))
		}
		if params.Interval == 0 {
			errs = append(errs, fmt.Errorf("raffle.%s.interval is required", chainID))
		}
		if params.VRFCoordinator != "" && !common.IsHexAddress(params.VRFCoordinator) {
			errs = append(errs, fmt.Errorf("raffle.%s.vrf-coordinator is not an address", chainID))
		}
	}

	if _, err := c.Mocks.BaseFeeWei(); err != nil {
		errs = append(errs, fmt.Errorf("mocks: %w", err))
	}
	if _, err := c.Mocks.GasPriceLinkWei(); err != nil {
		errs = append(errs, fmt.Errorf("mocks: %w", err))
	}
	if _, err := c.Mocks.SubFundAmountWei(); err != nil {
		errs = append(errs, fmt.Errorf("mocks: %w", err))
	}

	if c.FrontEnd.Update {
		if c.FrontEnd.AddressesFile == "" {
			errs = append(errs, errors.New("front-end.addresses-file is required when front-end.update is set"))
		}
		if c.FrontEnd.ABIFile == "" {
			errs = append(errs, errors.New("front-end.abi-file is required when front-end.update is set"))
		}
	}

	if c.Paths.Deployments == "" {
		errs = append(errs, errors.New("paths.deployments is required"))
	}
	if c.Paths.Artifacts == "" {
		errs = append(errs, errors.New("paths.artifacts is required"))
	}

	if c.Keeper.PollInterval <= 0 {
		errs = append(errs, errors.New("keeper.poll-interval must be positive"))
	}
	if c.Staging.Timeout <= 0 {
		errs = append(errs, errors.New("staging.timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func parseWei(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	wei, ok := new(big.Int).SetString(value, 10)
	if !ok || wei.Sign() < 0 {
		return nil, fmt.Errorf("%s '%s' is not a non-negative wei amount", field, value)
	}
	return wei, nil
}

func decodeHex32(value string) (common.Hash, error) {
	b, err := hexutil.Decode(value)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("expected %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}
