package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/voidreamer/merrino-memory/internal/cli"
	"github.com/voidreamer/merrino-memory/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "merrino",
		Short: "Merrino CLI - Semantic memory for AI agents",
		Long: `Merrino CLI stores and retrieves memory chunks through a merrinod daemon.

Environment variables:
  MERRINO_API_KEY   API key for authentication (optional)
  MERRINO_API_URL   Daemon base URL (default: http://localhost:8900)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "Daemon base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.AddFileCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.ReindexCmd())
	rootCmd.AddCommand(client.HealthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
