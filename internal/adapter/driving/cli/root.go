// Package cli is the command-line driving adapter. It wires configuration,
// persistence and the portal client into the application services and
// exposes them as cobra commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/travelerpub/internal/config"
)

var (
	version = "dev"
	verbose bool

	// loadConfig is replaced in tests.
	loadConfig = config.Load
)

var rootCmd = &cobra.Command{
	Use:   "travelerpub",
	Short: "Publish traveler information to ArcGIS",
	Long: `travelerpub downloads WSDOT traveler information feeds, packages them as a
file geodatabase, publishes it as a hosted feature service and keeps the
derived feature collection up to date.

Configuration is read from TRAVELERPUB_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. The command context is canceled on SIGINT
// or SIGTERM.
func Execute(buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}
