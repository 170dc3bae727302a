// Package app implements the erpsite command line.
package app

import (
	"fmt"
	"runtime"

	logging "github.com/ipfs/go-log/v2"
	"github.com/ledgerline/erpsite/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var log = logging.Logger("erpsite")

// Version is the release version, set at build time with
// -ldflags "-X github.com/ledgerline/erpsite/cmd/erpsite/app.Version=...".
var Version = "dev"

// NewRootCmd creates the erpsite root command with all subcommands. Each
// call returns an independent command tree with its own configuration.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	def := config.Default()

	rootCmd := &cobra.Command{
		Use:          "erpsite",
		Short:        "ERP consultancy landing page content API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyConfigFile, "", "Path to a YAML configuration file")
	flags.String(config.KeyLogLevel, def.LogLevel, "Log level (debug, info, warn, error)")
	bindFlags(v, flags, config.KeyConfigFile, config.KeyLogLevel)

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newFetchCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "erpsite %s %s %s/%s\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// loadConfig reads the configuration and applies its log level.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	lvl, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetAllLoggers(lvl)
	return cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			log.Fatalw("Cannot bind flag", "flag", name, "err", err)
		}
	}
}
