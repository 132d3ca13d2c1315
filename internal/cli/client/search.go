package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query         string  `json:"query"`
	TopK          int     `json:"top_k,omitempty"`
	Source        string  `json:"source,omitempty"`
	Importance    string  `json:"importance,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

// SearchHit represents one search result.
type SearchHit struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	SourcePath string   `json:"source_path,omitempty"`
	SourceDate string   `json:"source_date,omitempty"`
	Importance string   `json:"importance"`
	Tags       []string `json:"tags"`
	Similarity float64  `json:"similarity"`
	CreatedAt  string   `json:"created_at"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
	Count   int         `json:"count"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		topK          int
		source        string
		importance    string
		minSimilarity float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored memory",
		Long:  "Searches stored chunks by semantic similarity to the query.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			return runSearch(cmd, args[0], topK, source, importance, minSimilarity, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top", "n", 5, "Maximum number of results")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Filter by source label")
	cmd.Flags().StringVar(&importance, "importance", "", "Filter by importance")
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0, "Drop results below this similarity (0..1)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, topK int, source, importance string, minSimilarity float64, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := SearchRequest{
		Query:         query,
		TopK:          topK,
		Source:        source,
		Importance:    importance,
		MinSimilarity: minSimilarity,
	}

	resp, err := api.Post("/api/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if searchResp.Count == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", searchResp.Count)
	for i, hit := range searchResp.Results {
		fmt.Printf("%d. [%s] %.4f\n", i+1, hit.Source, hit.Similarity)
		fmt.Printf("   %s\n", previewContent(hit.Content, 200))
		if hit.SourcePath != "" {
			fmt.Printf("   Path: %s\n", hit.SourcePath)
		}
		if hit.SourceDate != "" {
			fmt.Printf("   Date: %s\n", hit.SourceDate)
		}
		if len(hit.Tags) > 0 {
			fmt.Printf("   Tags: %s\n", strings.Join(hit.Tags, ", "))
		}
		fmt.Printf("   ID: %s\n", hit.ID)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}

// previewContent flattens newlines and truncates to max runes for one-screen
// listings.
func previewContent(content string, max int) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= max {
		return flat
	}
	return string(runes[:max-3]) + "..."
}
