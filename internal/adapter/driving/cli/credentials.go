package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ericfisherdev/travelerpub/internal/application"
)

var credentialsUsername string

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored portal credentials",
	Long: `Stored credentials are encrypted with TRAVELERPUB_SECRET_KEY and take
priority over TRAVELERPUB_ARCGIS_USERNAME, TRAVELERPUB_ARCGIS_PASSWORD and the
login file.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the portal username and password",
	Long: `Stores the portal login. The password is read from the terminal without
echo, or from the first line of stdin when it is not a terminal.`,
	Args: cobra.NoArgs,
	RunE: runCredentialsSet,
}

var credentialsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored portal credentials",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsClear,
}

func init() {
	credentialsSetCmd.Flags().StringVarP(&credentialsUsername, "username", "u", "", "portal username")
	_ = credentialsSetCmd.MarkFlagRequired("username")

	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsClearCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentialsSet(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	if err := application.SaveCredential(cmd.Context(), a.credentials, credentialsUsername, password); err != nil {
		return err
	}
	cmd.Printf("Credentials for %s stored.\n", credentialsUsername)
	return nil
}

func runCredentialsClear(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := application.ClearCredential(cmd.Context(), a.credentials); err != nil {
		return err
	}
	cmd.Println("Stored credentials removed.")
	return nil
}

// readPassword prompts on a terminal, otherwise reads one line from the
// command input.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print("Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
