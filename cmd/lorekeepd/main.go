package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/cli"
	"github.com/lorekeep/lorekeep/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lorekeepd",
		Short: "Lorekeep daemon and admin CLI",
		Long:  "Lorekeep daemon for running the API server, the embedding worker, and managing tokens and embedding jobs",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.TokenCmd())
	rootCmd.AddCommand(admin.ReindexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
