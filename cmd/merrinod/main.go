package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/voidreamer/merrino-memory/internal/cli"
	"github.com/voidreamer/merrino-memory/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "merrinod",
		Short: "Merrino daemon and indexer",
		Long:  "Merrino daemon for running the memory API server and indexing configured sources",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IndexCmd())
	rootCmd.AddCommand(admin.IndexIncrementalCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
