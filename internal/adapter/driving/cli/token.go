package cli

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Acquire a portal token and print it",
	Long: `Requests a token from the portal generateToken endpoint with the resolved
credentials and prints it to stdout. Useful to verify credentials.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	tokens, _, err := a.portal(ctx)
	if err != nil {
		return err
	}

	if err := tokens.Acquire(ctx); err != nil {
		return err
	}
	token, err := tokens.Token(ctx)
	if err != nil {
		return err
	}

	slog.Info("token acquired", "username", tokens.Username(), "expires", tokens.Expires().Format(time.RFC3339))
	cmd.Println(token)
	return nil
}
