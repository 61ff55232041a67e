package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/echovault/echovault/internal/client"
)

var (
	apiFlag  string
	userFlag string
)

// newRootCmd builds the command tree. Every subcommand writes the raw JSON response to the
// command's output stream.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "journalctl",
		Short:         "CLI client for the journal service REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", envOr("JOURNAL_API", "http://localhost:8080"), "Journal service base URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", os.Getenv("JOURNAL_USER"), "User ID")

	rootCmd.AddCommand(
		newSubmitCmd(),
		newListCmd(),
		newGetCmd(),
		newEditCmd(),
		newResolveCmd(),
		newDismissCmd(),
		newOfflineCmd(),
		newAskCmd(),
		newTranscribeCmd(),
		newMaintainCmd(),
		newHealthCmd(),
	)
	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient() *client.Client {
	return client.New(apiFlag)
}

func requireUser() error {
	if userFlag == "" {
		return fmt.Errorf("--user required")
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
