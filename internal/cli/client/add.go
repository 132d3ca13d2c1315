package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// IngestRequest represents the ingest API request.
type IngestRequest struct {
	Content    string   `json:"content"`
	Source     string   `json:"source,omitempty"`
	SourcePath string   `json:"source_path,omitempty"`
	SourceDate string   `json:"source_date,omitempty"`
	Importance string   `json:"importance,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// IngestResponse represents the ingest API response.
type IngestResponse struct {
	Status        string   `json:"status"`
	ChunksCreated int      `json:"chunks_created"`
	ChunkIDs      []string `json:"chunk_ids"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var (
		source     string
		sourcePath string
		sourceDate string
		importance string
		tags       []string
	)

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory",
		Long: `Store a piece of text in memory. Content comes from the argument or stdin.

Examples:
  # Add from an argument
  merrino add "The staging cluster lives in eu-west-1"

  # Add from stdin
  cat meeting-notes.md | merrino add --source notes --tags infra,meetings

  # Add with a date and importance
  merrino add "Rotated the S3 keys" --source-date 2026-08-01 --importance high`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			content := ""
			if len(args) == 1 {
				content = args[0]
			}
			return runAdd(cmd, content, source, sourcePath, sourceDate, importance, tags, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Source label (default: manual)")
	cmd.Flags().StringVar(&sourcePath, "source-path", "", "Originating file path")
	cmd.Flags().StringVar(&sourceDate, "source-date", "", "Source date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&importance, "importance", "", "Importance label (default: normal)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Comma-separated tags")

	return cmd
}

func runAdd(cmd *cobra.Command, content, source, sourcePath, sourceDate, importance string, tags []string, outputJSON bool) error {
	if content == "" {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		content = string(input)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("no content provided")
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := IngestRequest{
		Content:    content,
		Source:     source,
		SourcePath: sourcePath,
		SourceDate: sourceDate,
		Importance: importance,
		Tags:       tags,
	}

	resp, err := api.Post("/api/ingest", req)
	if err != nil {
		return fmt.Errorf("failed to store memory: %w", err)
	}

	var ingestResp IngestResponse
	if err := json.Unmarshal(resp.Data, &ingestResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(ingestResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Stored %d chunks\n", ingestResp.ChunksCreated)
		for _, id := range ingestResp.ChunkIDs {
			fmt.Printf("  %s\n", id)
		}
	}

	return nil
}
