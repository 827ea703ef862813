package deploy

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/contracts"
	"github.com/raffle-dev/raffle-tooling/internal/flags"
	"github.com/raffle-dev/raffle-tooling/internal/frontend"
	"github.com/raffle-dev/raffle-tooling/internal/network"
	"github.com/raffle-dev/raffle-tooling/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the VRF mock (development chains) and the raffle",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
			return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
		}
		cfg := configs.Values

		names, err := cmd.Flags().GetStringSlice("tags")
		if err != nil {
			return err
		}
		tags, err := ParseTags(names)
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

		backend, err := newBackend(env)
		if err != nil {
			return err
		}

		var exporter frontendExporter
		if cfg.FrontEnd.Update {
			exporter = frontend.NewExporter(cfg.FrontEnd)
		}

		var generator outputGenerator
		if !env.InProcess() {
			generator = output.NewGenerator(filepath.Join(env.Store().Dir(), output.FileName))
		}

		result, err := NewService(cfg, env.Name(), backend, env.Store(), exporter, env.Gas(), generator).Deploy(cmd.Context(), tags)
		if err != nil {
			return err
		}

		if result.Raffle != nil {
			slog.With("raffle", result.Raffle.Address().Hex()).With("chain_id", result.ChainID).Info("deploy finished")
		}
		return nil
	},
}

func init() {
	CMD.Flags().StringSlice("tags", nil, fmt.Sprintf("deploy scripts to run %v (default all)", Tags))
	flags.MustDeclare(viper.GetViper(), CMD.Flags(), []flags.Def[bool]{
		{Name: "update-front-end", ViperKey: "front-end.update", Default: false, Description: "Write the raffle address and ABI to the front end"},
	})
}

func newBackend(env *network.Environment) (Backend, error) {
	if env.InProcess() {
		deployer, err := env.Account(configs.AccountNameDeployer)
		if err != nil {
			return nil, err
		}
		return NewDevnetBackend(env.Devnet(), deployer), nil
	}

	compiled, err := contracts.LoadCompiledContracts(env.Config().Paths.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to load compiled contracts (run 'compile' first): %w", err)
	}
	signer, err := env.Signer(configs.AccountNameDeployer)
	if err != nil {
		return nil, err
	}
	return NewChainBackend(env.Client(), signer, compiled), nil
}
