package cmd

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/infofi-harvester/internal/config"
	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/report"
)

const dataArtifactGlob = "**/*_data.json"

// newReportCmd creates the 'report' subcommand, which re-aggregates data
// artifacts already written to a local directory.
func newReportCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		dir    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarizes stored seed artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Storage.BaseDir
			}
			rep, files, err := aggregateDir(os.DirFS(dir), report.Config{
				FollowerThreshold:   cfg.Report.FollowerThreshold,
				EngagementThreshold: cfg.Report.EngagementThreshold,
				TopN:                cfg.Report.TopN,
				DisparityRatio:      cfg.Report.DisparityRatio,
			})
			if err != nil {
				return err
			}
			if files == 0 {
				return fmt.Errorf("no data artifacts under %s", dir)
			}
			switch format {
			case "markdown", "md":
				return report.WriteMarkdown(cmd.OutOrStdout(), rep)
			case "text", "":
				return report.WriteText(cmd.OutOrStdout(), rep)
			default:
				return fmt.Errorf("unknown report format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "artifact directory (defaults to storage.base_dir)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or markdown")
	return cmd
}

// aggregateDir decodes every data artifact in fsys and aggregates their
// records. It returns the number of artifacts read.
func aggregateDir(fsys fs.FS, cfg report.Config) (report.Report, int, error) {
	matches, err := doublestar.Glob(fsys, dataArtifactGlob)
	if err != nil {
		return report.Report{}, 0, fmt.Errorf("glob data artifacts: %w", err)
	}
	sort.Strings(matches)

	var records []crawler.UserRecord
	for _, name := range matches {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return report.Report{}, 0, fmt.Errorf("read %s: %w", name, err)
		}
		var art crawler.SeedArtifact
		if err := json.Unmarshal(raw, &art); err != nil {
			return report.Report{}, 0, fmt.Errorf("decode %s: %w", name, err)
		}
		records = append(records, art.Records()...)
	}
	return report.Aggregate(records, cfg), len(matches), nil
}
