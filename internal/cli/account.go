package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the Drive account the stored token belongs to",
		Args:  cobra.NoArgs,
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
			acct, err := client.About(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s>\n", acct.Name, acct.Email)
			return nil
		},
	}
}
