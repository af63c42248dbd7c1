package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ontahood/drivefetch/internal/convert"
	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/fetch"
	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/pathutil"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <dir>",
		Short: "Fetch full-size originals for previews already downloaded",
		Long: `Scans a local directory tree for preview files (the width-suffixed
JPEGs a fetch produces) and downloads the corresponding original next to
each one. The true file extension is looked up on Drive, so a HEIC or
RAW original lands with its real name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := GetContext()

			client, ts, err := newDriveClient(ctx, cfg)
			if err != nil {
				return err
			}

			dir, err := pathutil.ResolveAbsolute(args[0])
			if err != nil {
				return err
			}
			conv := convert.New(client, logger, cfg.Overwrite)
			rep := newScanReporter()
			rep.Start(-1, "Scanning previews")
			plan, err := conv.Scan(ctx, dir)
			if err != nil {
				rep.Error(err)
				return err
			}
			rep.Finish()
			logger.Info().
				Int("previews", plan.Matched).
				Int("have_original", plan.Existing).
				Int("pending", len(plan.Tasks)).
				Msg("Conversion plan")
			if len(plan.Tasks) == 0 {
				return nil
			}

			content, err := drive.NewContent(ctx, cfg, ts)
			if err != nil {
				return err
			}
			engine := fetch.New(content, logger, cfg.ImageWidth)
			engine.Retry = retryConfig(cfg)
			engine.Overwrite = cfg.Overwrite

			totals := models.NewRunTotals()
			stats := runTasks(ctx, engine, plan.Tasks, convertSummaries(plan.Tasks), totals, cfg.Workers)

			state := runState(ctx, stats)
			reportRun(stats, totals, state)
			switch state {
			case models.RunCancelled:
				return fmt.Errorf("run cancelled")
			case models.RunFailed:
				return fmt.Errorf("%d transfer(s) failed", stats.Failed)
			}
			return nil
		},
	}
}

// convertSummaries groups conversion tasks per directory so the
// scheduler's folder summaries have something truthful to report.
func convertSummaries(tasks []models.FetchTask) map[string]*models.FolderSummary {
	summaries := make(map[string]*models.FolderSummary)
	for _, task := range tasks {
		sum := summaries[task.FolderKey]
		if sum == nil {
			sum = &models.FolderSummary{RootLabel: task.RootLabel}
			summaries[task.FolderKey] = sum
		}
		sum.Images++
		if task.ExpectedSize > 0 {
			sum.ImagesBytes += task.ExpectedSize
		}
	}
	return summaries
}
