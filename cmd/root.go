// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/config"
	"github.com/JakeFAU/infofi-harvester/internal/logging"
)

// newRootCmd creates the root command and attaches every subcommand.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Deep-crawls leaderboard sites and enriches the users it finds.",
		Long: `harvester crawls a set of seed sites breadth-first, extracts user records
from every admitted page, enriches them with public profile engagement and
summarizes how engagement relates to leaderboard scores.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	load := func() (config.Config, error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cmd.AddCommand(newCrawlCmd(load))
	cmd.AddCommand(newReportCmd(load))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logger, lerr := logging.New(logging.Options{})
		if lerr != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		logger.Fatal("command execution failed", zap.Error(err))
	}
}
