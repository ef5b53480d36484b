package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/travelerpub/internal/application"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the publish workflow once",
	Long: `Downloads the traveler feeds (when an access code is configured), builds the
geodatabase package, uploads and publishes it, then exports the feature
collection. The run is recorded in the local database.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	_, client, err := a.portal(ctx)
	if err != nil {
		return err
	}

	run, err := a.syncService(client).RunOnce(ctx, application.TriggerCLI)
	if err != nil {
		return fmt.Errorf("sync run %s failed: %w", run.ID, err)
	}

	cmd.Printf("Sync run %s %s in %s.\n", run.ID, run.Status, run.Duration().Round(time.Millisecond))
	cmd.Printf("  Package item:    %s\n", run.PackageItemID)
	cmd.Printf("  Service item:    %s\n", run.ServiceItemID)
	cmd.Printf("  Collection item: %s\n", run.CollectionItemID)
	return nil
}
