package contracts

import (
	"fmt"
	"os"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/infra/docker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var CMD = &cobra.Command{
	Use:   "compile",
	Short: "Compile the Solidity contracts with solc in docker",
	Long:  "Compiles the contracts directory and writes contracts.json with the ABIs and bytecode used for JSON-RPC deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
			return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
		}
		cfg := configs.Values

		rootDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		client, err := docker.New()
		if err != nil {
			return fmt.Errorf("failed to create docker client: %w", err)
		}
		defer client.Close()

		compiler := NewCompiler(client, rootDir, cfg.Paths.Contracts, cfg.Paths.Artifacts, cfg.Solidity.Version)
		if err := compiler.Compile(cmd.Context()); err != nil {
			return fmt.Errorf("failed to compile contracts: %w", err)
		}

		if _, err := LoadCompiledContracts(cfg.Paths.Artifacts); err != nil {
			return fmt.Errorf("compiled artifacts are incomplete: %w", err)
		}
		return nil
	},
}
