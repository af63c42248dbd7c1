package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ontahood/drivefetch/internal/models"
	"github.com/ontahood/drivefetch/internal/prescan"
)

func newPrescanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prescan <folder-url>...",
		Short: "Count folder contents without downloading anything",
		Long: `Walks every given Drive folder recursively and reports what a fetch
would do: how many images, videos and documents exist, how many are
already on disk, and roughly how many bytes remain to transfer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := GetContext()

			client, _, err := newDriveClient(ctx, cfg)
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

			logger.Info().Int("pending", len(plan.Tasks)).Msg("Tasks a fetch would run")
			if len(plan.RootErrors) == len(args) {
				return fmt.Errorf("no folder could be scanned")
			}
			return nil
		},
	}
}
