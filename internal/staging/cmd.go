package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/chain"
	"github.com/raffle-dev/raffle-tooling/internal/flags"
	"github.com/raffle-dev/raffle-tooling/internal/network"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var CMD = &cobra.Command{
	Use:   "staging",
	Short: "Enter the deployed raffle on a live network and wait for the real draw",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
			return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
		}
		cfg := configs.Values

		if cfg.IsDevelopment(cfg.DefaultNetwork) {
			slog.With("network", cfg.DefaultNetwork).Warn("staging checks only run on live networks, skipping")
			return nil
		}

		env, err := network.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, env.Close())
		}()

		lottery, err := env.Lottery(configs.AccountNameDeployer)
		if err != nil {
			return err
		}

		report, err := NewRunner(lottery, env, cfg.Staging.Timeout).Run(cmd.Context())
		if err != nil {
			return err
		}

		slog.
			With("raffle", report.Raffle.Hex()).
			With("winner", report.Winner.Hex()).
			With("starting_balance", chain.FormatETH(report.StartingBalance)).
			With("ending_balance", chain.FormatETH(report.EndingBalance)).
			Info("staging check passed")
		return nil
	},
}

func init() {
	flags.MustDeclare(viper.GetViper(), CMD.Flags(), []flags.Def[time.Duration]{
		{Name: "timeout", ViperKey: "staging.timeout", Default: 10 * time.Minute, Description: "How long to wait for the draw"},
	})
}
