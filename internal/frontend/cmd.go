package frontend

import (
	"errors"
	"fmt"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/deployments"
	"github.com/raffle-dev/raffle-tooling/internal/network"
	"github.com/raffle-dev/raffle-tooling/internal/raffle"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CMD exports the recorded raffle deployment of the selected network to the front end.
var CMD = &cobra.Command{
	Use:   "export-frontend",
	Short: "Write the deployed raffle address and ABI to the front end constants",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
			return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
		}
		return exportDeployment(configs.Values)
	},
}

func exportDeployment(cfg configs.Config) error {
	selected, err := cfg.Network(cfg.DefaultNetwork)
	if err != nil {
		return err
	}
	if selected.InProcess() {
		return fmt.Errorf("export-frontend on '%s': %w", cfg.DefaultNetwork, network.ErrInProcess)
	}
	if cfg.FrontEnd.AddressesFile == "" || cfg.FrontEnd.ABIFile == "" {
		return errors.New("front-end.addresses-file and front-end.abi-file are required")
	}

	store := deployments.NewStore(cfg.Paths.Deployments, cfg.DefaultNetwork)
	record, err := store.Get(raffle.ContractNameRaffle)
	if err != nil {
		return fmt.Errorf("failed to load raffle deployment: %w", err)
	}
	chainID, err := store.ChainID()
	if err != nil {
		return fmt.Errorf("failed to load chain id: %w", err)
	}

	return NewExporter(cfg.FrontEnd).Export(chainID, record.Address, record.ABI)
}
