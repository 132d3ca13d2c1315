package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ChunkItem represents a single chunk in the list response.
type ChunkItem struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	SourcePath string   `json:"source_path,omitempty"`
	SourceDate string   `json:"source_date,omitempty"`
	Importance string   `json:"importance"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"created_at"`
}

// ChunkListResponse represents the list API response.
type ChunkListResponse struct {
	Items   []ChunkItem `json:"items"`
	Cursor  string      `json:"cursor,omitempty"`
	HasMore bool        `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		source string
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored chunks",
		Long:  "Lists stored chunks newest first, optionally filtered by source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			return runList(cmd, source, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Filter by source label")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runList(cmd *cobra.Command, source string, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	query := url.Values{}
	if source != "" {
		query.Set("source", source)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	path := "/api/chunks"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var listResp ChunkListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Items) == 0 {
		fmt.Println("No chunks found.")
		return nil
	}

	fmt.Printf("Found %d chunks:\n\n", len(listResp.Items))
	for i, item := range listResp.Items {
		fmt.Printf("%d. [%s] %s\n", i+1, item.Source, previewContent(item.Content, 120))
		if item.SourcePath != "" {
			fmt.Printf("   Path: %s\n", item.SourcePath)
		}
		if item.SourceDate != "" {
			fmt.Printf("   Date: %s\n", item.SourceDate)
		}
		fmt.Printf("   Created: %s\n", item.CreatedAt)
		fmt.Printf("   ID: %s\n", item.ID)
		if i < len(listResp.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	if listResp.HasMore && listResp.Cursor != "" {
		fmt.Printf("\n%s\n", strings.Repeat("-", 40))
		fmt.Printf("More results available. Use --cursor %s\n", listResp.Cursor)
	}

	return nil
}
