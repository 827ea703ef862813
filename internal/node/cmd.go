package node

import (
	"fmt"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/flags"
	"github.com/raffle-dev/raffle-tooling/internal/infra/docker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	CMD = &cobra.Command{
		Use:   "node",
		Short: "Manage the local JSON-RPC node serving the localhost network",
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the local node and wait until it serves RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(service *Service) error {
				return service.Start(cmd.Context())
			})
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop and remove the local node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(service *Service) error {
				return service.Stop(cmd.Context())
			})
		},
	}
)

func init() {
	flags.MustDeclare(viper.GetViper(), CMD.PersistentFlags(), []flags.Def[string]{
		{Name: "image", ViperKey: "node.image", Default: "ghcr.io/foundry-rs/foundry:latest", Description: "Docker image providing anvil"},
		{Name: "container-name", ViperKey: "node.container-name", Default: "raffle-localnode", Description: "Name of the node container"},
	})
	flags.MustDeclare(viper.GetViper(), CMD.PersistentFlags(), []flags.Def[int]{
		{Name: "port", ViperKey: "node.port", Default: 8545, Description: "Host port for the node RPC"},
	})

	CMD.AddCommand(startCmd)
	CMD.AddCommand(stopCmd)
}

func withService(cmd *cobra.Command, run func(*Service) error) error {
	if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
		return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
	}
	cfg := configs.Values

	localhost, err := cfg.Network(configs.NetworkNameLocalhost)
	if err != nil {
		return err
	}

	client, err := docker.New()
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer client.Close()

	return run(NewService(client, cfg.Node, localhost.ChainID))
}
