package simulate

import (
	"errors"
	"fmt"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/deploy"
	"github.com/raffle-dev/raffle-tooling/internal/keeper"
	"github.com/raffle-dev/raffle-tooling/internal/network"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var CMD = &cobra.Command{
	Use:   "simulate",
	Short: "Deploy into the in-process network and play one raffle round",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
			return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
		}
		cfg := configs.Values

		players, err := cmd.Flags().GetInt("players")
		if err != nil {
			return err
		}

		env, err := network.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, env.Close())
		}()

		if !env.InProcess() {
			return fmt.Errorf("simulate needs an in-process network, '%s' is served over JSON-RPC", env.Name())
		}

		deployer, err := env.Account(configs.AccountNameDeployer)
		if err != nil {
			return err
		}
		service := deploy.NewService(cfg, env.Name(), deploy.NewDevnetBackend(env.Devnet(), deployer), env.Store(), nil, env.Gas(), nil)

		summary, err := New(env.Devnet(), service, players, keeper.NewMetrics(), env.Gas()).Run(cmd.Context())
		if err != nil {
			return err
		}
		return summary.Render(cmd.OutOrStdout())
	},
}

func init() {
	CMD.Flags().Int("players", 3, "Number of accounts entering the raffle")
}
