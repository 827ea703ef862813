package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/raffle-dev/raffle-tooling/configs"
	"github.com/raffle-dev/raffle-tooling/internal/contracts"
	"github.com/raffle-dev/raffle-tooling/internal/deploy"
	"github.com/raffle-dev/raffle-tooling/internal/flags"
	"github.com/raffle-dev/raffle-tooling/internal/frontend"
	"github.com/raffle-dev/raffle-tooling/internal/keeper"
	"github.com/raffle-dev/raffle-tooling/internal/logger"
	"github.com/raffle-dev/raffle-tooling/internal/node"
	"github.com/raffle-dev/raffle-tooling/internal/simulate"
	"github.com/raffle-dev/raffle-tooling/internal/staging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const appName = "raffle"

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Deploy, export and operate the raffle contracts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelName, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		level, err := logger.ParseLevel(levelName)
		if err != nil {
			return err
		}
		logger.Initialize(level)

		if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Join(err, errors.New("error reading .env file"))
		}

		if err := configs.SetDefaults(viper.GetViper()); err != nil {
			return err
		}
		if err := configs.BindEnv(viper.GetViper()); err != nil {
			return err
		}

		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if execPath, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(execPath))
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")

		// Without a config file the embedded defaults, env and flags still apply.
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				slog.Debug("no config file found, using embedded defaults")
			} else {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
		} else {
			slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := configs.Decode(viper.GetViper(), &configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		if err := configs.Values.Validate(); err != nil {
			return err
		}

		slog.With("network", configs.Values.DefaultNetwork).Debug("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.MustDeclare(viper.GetViper(), rootCmd.PersistentFlags(), []flags.Def[string]{
		{Name: "network", ViperKey: "default-network", Default: string(configs.NetworkNameHardhat), Description: "Network to run against"},
	})
}

func main() {
	rootCmd.AddCommand(deploy.CMD)
	rootCmd.AddCommand(frontend.CMD)
	rootCmd.AddCommand(keeper.CMD)
	rootCmd.AddCommand(staging.CMD)
	rootCmd.AddCommand(simulate.CMD)
	rootCmd.AddCommand(contracts.CMD)
	rootCmd.AddCommand(node.CMD)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
