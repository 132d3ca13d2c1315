package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chunk by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			return runDelete(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runDelete(cmd *cobra.Command, chunkID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Delete(fmt.Sprintf("/api/chunks/%s", chunkID)); err != nil {
		return fmt.Errorf("failed to delete chunk: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(map[string]string{
			"id":     chunkID,
			"status": "deleted",
		}, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Deleted chunk %s\n", chunkID)
	}

	return nil
}
