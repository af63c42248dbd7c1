package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ontahood/drivefetch/internal/constants"
	"github.com/ontahood/drivefetch/internal/drive"
	"github.com/ontahood/drivefetch/internal/events"
	"github.com/ontahood/drivefetch/internal/fetch"
	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/prescan"
	"github.com/ontahood/drivefetch/internal/progress"
	"github.com/ontahood/drivefetch/internal/scheduler"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <folder-url>...",
		Short: "Download previews (and videos/docs per config) from Drive folders",
		Long: `Pre-scans every given folder, then downloads what is missing locally
with bounded concurrency. Image previews come first-class; originals,
videos and documents follow the configured options. Interrupted
downloads resume where they left off on the next run.`,
		Args: cobra.MinimumNArgs(1),
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

			totals := models.NewRunTotals()
			scanner := prescan.New(client, client, logger, totals, scanOptions(cfg))
			scanner.Retry = retryConfig(cfg)

			finish := watchScan(newScanReporter(), totals, "Scanning folders", 0)
			plan, err := scanner.Scan(ctx, args)
			finish(err)
			if err != nil {
				return err
			}
			reportScan(plan, totals)
			if len(plan.RootErrors) == len(args) {
				return fmt.Errorf("no folder could be scanned")
			}

			content, err := drive.NewContent(ctx, cfg, ts)
			if err != nil {
				return err
			}
			engine := fetch.New(content, logger, cfg.ImageWidth)
			engine.Retry = retryConfig(cfg)
			engine.Overwrite = cfg.Overwrite

			stats := runTasks(ctx, engine, plan.Tasks, plan.Summaries, totals, cfg.Workers)

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

// runTasks drives the scheduler with the progress display attached:
// bars and summaries render from bus events while logs print above the
// bars, then everything is restored once the run settles.
func runTasks(ctx context.Context, engine *fetch.Engine, tasks []models.FetchTask,
	summaries map[string]*models.FolderSummary, totals *models.RunTotals, workers int) scheduler.Stats {
	bus := events.NewBus(constants.EventBusDefaultBuffer)
	ui := progress.NewFetchUI(len(tasks))
	uiDone := make(chan struct{})
	go func() {
		ui.Run(bus.SubscribeAll())
		close(uiDone)
	}()

	prevOut := logger.Output()
	logger.SetOutput(ui.LogWriter())
	defer logger.SetOutput(prevOut)

	collector := progress.NewCollector(totals, bus, 0)
	collector.Start()

	sched := scheduler.New(engine, logger, bus, totals, workers)
	stats := sched.Run(ctx, tasks, summaries)

	collector.Stop()
	bus.Publish(&events.RunDoneEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventRunDone, Time: time.Now()},
		Totals:    totals.Snapshot(),
		State:     runState(ctx, stats),
	})
	<-uiDone
	ui.Wait()
	bus.Close()
	return stats
}
