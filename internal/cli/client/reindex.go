package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ReindexRequest represents the reindex API request.
type ReindexRequest struct {
	Full            bool `json:"full,omitempty"`
	TranscriptsOnly bool `json:"transcripts_only,omitempty"`
}

// ReindexCmd creates the reindex command.
func ReindexCmd() *cobra.Command {
	var (
		full            bool
		transcriptsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Schedule an indexing run",
		Long: `Asks the daemon to schedule an indexing run. The run happens in the
background; use 'merrino stats' or the runs endpoint to see the result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			return runReindex(cmd, full, transcriptsOnly, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Reindex every file, ignoring change detection")
	cmd.Flags().BoolVar(&transcriptsOnly, "transcripts-only", false, "Rebuild transcript chunks only")

	return cmd
}

func runReindex(cmd *cobra.Command, full, transcriptsOnly, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/api/reindex", ReindexRequest{
		Full:            full,
		TranscriptsOnly: transcriptsOnly,
	})
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if status.Status == "already_pending" {
		fmt.Println("A run is already pending; your changes will be picked up by it.")
	} else {
		fmt.Println("Indexing run scheduled.")
	}

	return nil
}
