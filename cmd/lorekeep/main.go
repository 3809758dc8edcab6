package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/cli"
	"github.com/lorekeep/lorekeep/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lorekeep",
		Short: "Lorekeep CLI - Ask and search your knowledge base",
		Long: `Lorekeep CLI streams answers and searches indexed pages.

Environment variables:
  LOREKEEP_API_KEY   API token for authentication (required)
  LOREKEEP_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API token for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
