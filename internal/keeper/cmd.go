package keeper

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/flags"
	"github.com/raffle-dev/raffle-tooling/internal/network"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var CMD = &cobra.Command{
	Use:   "keeper",
	Short: "Check upkeep and, when needed, perform it and drive the VRF mock",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
			return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
		}
		cfg := configs.Values

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := network.Open(ctx, cfg)
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
		coordinator, err := env.Coordinator(configs.AccountNameDeployer)
		if err != nil {
			return err
		}

		metrics := NewMetrics()
		k := New(lottery, coordinator, env.ChainID(), metrics, env.Gas())

		watch, err := cmd.Flags().GetBool("watch")
		if err != nil {
			return err
		}
		if !watch {
			_, err := k.Run(ctx)
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		if cfg.Keeper.MetricsAddr != "" {
			g.Go(func() error {
				return ServeMetrics(gctx, cfg.Keeper.MetricsAddr, metrics)
			})
		}
		g.Go(func() error {
			defer stop()
			return k.Watch(gctx, cfg.Keeper.PollInterval)
		})
		return g.Wait()
	},
}

func init() {
	CMD.Flags().Bool("watch", false, "Keep checking upkeep every poll interval until interrupted")
	flags.MustDeclare(viper.GetViper(), CMD.Flags(), []flags.Def[time.Duration]{
		{Name: "poll-interval", ViperKey: "keeper.poll-interval", Default: 30 * time.Second, Description: "Interval between upkeep checks in watch mode"},
	})
	flags.MustDeclare(viper.GetViper(), CMD.Flags(), []flags.Def[string]{
		{Name: "metrics-addr", ViperKey: "keeper.metrics-addr", Default: "", Description: "Address to serve Prometheus metrics on in watch mode"},
	})
}
