package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/cake-orders/pkg/core/services"
)

// SyncCmd creates the sync command
func SyncCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch all form submissions and reconcile them into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.SyncSubmissions(
				app.Ctx,
				app.FilloutClient,
				app.Store,
				app.Bus,
				app.Notifier,
				app.Cfg,
				app.Logger,
			)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Sync complete: %d fetched, %d new, %d updated\n",
				result.Fetched, len(result.Inserted), len(result.Updated))

			if len(result.Inserted) > 0 {
				fmt.Println("\nNew orders:")
				for _, s := range result.Inserted {
					fmt.Printf("  + %s (%s)\n", displayName(s.CustomerName()), s.SubmissionID)
				}
			}

			if len(result.Rejected) > 0 {
				fmt.Printf("\n⚠️  %d submissions could not be decoded (see log for payloads)\n", len(result.Rejected))
			}

			if len(result.Failed) > 0 {
				fmt.Printf("\n⚠️  Failed to store %d submissions:\n", len(result.Failed))
				for _, f := range result.Failed {
					fmt.Printf("  ✗ %s: %v\n", f.SubmissionID, f.Err)
				}
			}
			fmt.Println()

			return nil
		},
	}
}
