package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/app"
	"github.com/JakeFAU/infofi-harvester/internal/config"
	"github.com/JakeFAU/infofi-harvester/internal/report"
)

type crawlFlags struct {
	maxDepth int
	output   string
}

// newCrawlCmd creates the 'crawl' subcommand. Positional arguments replace
// the configured seeds.
func newCrawlCmd(load func() (config.Config, error)) *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Runs a harvest session",
		Long: `Runs one harvest session over the configured seeds, writes one data
artifact per seed and prints the engagement report when the session ends.
SIGINT or SIGTERM stops expansion; pages already fetched are still written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			applyCrawlOverrides(&cfg, cmd, flags, args)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCrawl(cmd, cfg)
		},
	}
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", 0, "maximum link depth below each seed")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "directory for local artifacts")
	return cmd
}

func applyCrawlOverrides(cfg *config.Config, cmd *cobra.Command, flags crawlFlags, seeds []string) {
	if len(seeds) > 0 {
		cfg.Session.Seeds = seeds
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.Session.MaxDepth = flags.maxDepth
	}
	if flags.output != "" {
		cfg.Storage.Backend = config.BackendLocal
		cfg.Storage.BaseDir = flags.output
	}
}

func runCrawl(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		return fmt.Errorf("build harvester: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.Logger().Warn("close failed", zap.Error(cerr))
		}
	}()

	res, err := a.Run(ctx)
	if err != nil {
		return fmt.Errorf("run session: %w", err)
	}
	if res.Canceled {
		a.Logger().Warn("session interrupted; artifacts hold the pages fetched so far",
			zap.String("session_id", res.SessionID))
	}
	for _, sr := range res.Seeds {
		switch {
		case sr.Skipped:
			a.Logger().Info("seed skipped", zap.String("seed", sr.Artifact.SeedURL))
		case sr.Err != nil:
			a.Logger().Error("seed artifact failed", zap.String("seed", sr.Artifact.SeedURL), zap.Error(sr.Err))
		default:
			a.Logger().Info("seed artifact written",
				zap.String("seed", sr.Artifact.SeedURL),
				zap.String("data", sr.DataURI),
				zap.String("raw", sr.RawURI))
		}
	}
	return report.WriteText(cmd.OutOrStdout(), res.Report)
}
