package client

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

// IngestFileRequest represents the ingest-file API request.
type IngestFileRequest struct {
	Path        string `json:"path"`
	SourceLabel string `json:"source_label,omitempty"`
}

// IngestFileResponse represents the ingest-file API response.
type IngestFileResponse struct {
	Path          string `json:"path"`
	Skipped       bool   `json:"skipped"`
	ChunksCreated int    `json:"chunks_created"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// AddFileCmd creates the add-file command.
func AddFileCmd() *cobra.Command {
	var sourceLabel string

	cmd := &cobra.Command{
		Use:   "add-file <path>",
		Short: "Index one file on demand",
		Long: `Asks the daemon to index a single file through the normal pipeline:
existing chunks for the file are replaced. The path is resolved on the
daemon's filesystem, so the daemon must be able to read it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			return runAddFile(cmd, args[0], sourceLabel, outputJSON)
		},
	}

	cmd.Flags().StringVar(&sourceLabel, "source-label", "", "Source label for the created chunks (default: adhoc)")

	return cmd
}

func runAddFile(cmd *cobra.Command, path, sourceLabel string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	// Resolve relative paths against the client's cwd; the daemon sees only
	// the final absolute path.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resp, err := api.Post("/api/ingest-file", IngestFileRequest{
		Path:        abs,
		SourceLabel: sourceLabel,
	})
	if err != nil {
		return fmt.Errorf("failed to index file: %w", err)
	}

	var fileResp IngestFileResponse
	if err := json.Unmarshal(resp.Data, &fileResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(fileResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if fileResp.Skipped {
		fmt.Printf("Skipped %s (too small to index)\n", fileResp.Path)
		return nil
	}
	fmt.Printf("Indexed %s\n", fileResp.Path)
	fmt.Printf("Chunks created: %d, replaced: %d\n", fileResp.ChunksCreated, fileResp.ChunksDeleted)

	return nil
}
