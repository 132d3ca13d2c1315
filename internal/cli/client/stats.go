package client

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// DateRange represents the span of source dates in the corpus.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// IndexRunSummary represents one indexing run in API responses.
type IndexRunSummary struct {
	ID              string `json:"id"`
	Trigger         string `json:"trigger"`
	Full            bool   `json:"full"`
	TranscriptsOnly bool   `json:"transcripts_only"`
	FilesScanned    int    `json:"files_scanned"`
	FilesIndexed    int    `json:"files_indexed"`
	FilesSkipped    int    `json:"files_skipped"`
	FilesFailed     int    `json:"files_failed"`
	ChunksCreated   int    `json:"chunks_created"`
	ChunksDeleted   int    `json:"chunks_deleted"`
	DurationMs      int64  `json:"duration_ms"`
	Error           string `json:"error,omitempty"`
	StartedAt       string `json:"started_at"`
	FinishedAt      string `json:"finished_at"`
}

// StatsResponse represents the stats API response.
type StatsResponse struct {
	CorpusID    string           `json:"corpus_id"`
	TotalChunks int64            `json:"total_chunks"`
	Sources     map[string]int64 `json:"sources"`
	DateRange   *DateRange       `json:"date_range,omitempty"`
	LastRun     *IndexRunSummary `json:"last_run,omitempty"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			return runStats(cmd, outputJSON)
		},
	}

	return cmd
}

func runStats(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/api/stats")
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	var stats StatsResponse
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Corpus: %s\n", stats.CorpusID)
	fmt.Printf("Total chunks: %d\n", stats.TotalChunks)

	if len(stats.Sources) > 0 {
		labels := make([]string, 0, len(stats.Sources))
		for label := range stats.Sources {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		fmt.Println("Sources:")
		for _, label := range labels {
			fmt.Printf("  %s: %d\n", label, stats.Sources[label])
		}
	}

	if stats.DateRange != nil {
		fmt.Printf("Date range: %s .. %s\n", stats.DateRange.Earliest, stats.DateRange.Latest)
	}

	if stats.LastRun != nil {
		run := stats.LastRun
		fmt.Printf("Last run: %s (%s) scanned=%d indexed=%d skipped=%d failed=%d in %dms\n",
			run.StartedAt, run.Trigger,
			run.FilesScanned, run.FilesIndexed, run.FilesSkipped, run.FilesFailed,
			run.DurationMs)
		if run.Error != "" {
			fmt.Printf("Last run error: %s\n", run.Error)
		}
	}

	return nil
}
