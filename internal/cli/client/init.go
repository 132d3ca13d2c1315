package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// InitCmd creates the init command.
func InitCmd() *cobra.Command {
	var apiKey string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the merrino client",
		Long: `Verifies the daemon is reachable and saves the API URL and key to the
global config file (` + "`" + `<user config dir>/merrino/config.json` + "`" + `).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("json")
			return runInit(apiKey, apiURL, outputJSON)
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (leave empty for daemons without auth)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: http://localhost:8900)")

	return cmd
}

func runInit(apiKey, apiURL string, outputJSON bool) error {
	_ = godotenv.Load()
	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		fmt.Printf("Daemon URL [%s]: ", defaultAPIURL)
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read URL: %w", err)
		}
		apiURL = strings.TrimSpace(input)
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	apiURL = strings.TrimSuffix(apiURL, "/")

	if apiKey == "" {
		apiKey = os.Getenv(envAPIKey)
	}

	api, err := NewAPIClientWithConfig(apiKey, apiURL)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	if _, err := api.Get("/health"); err != nil {
		return fmt.Errorf("daemon at %s is not reachable: %w", apiURL, err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIKey: apiKey, APIURL: apiURL}); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if outputJSON {
		result := map[string]interface{}{
			"success": true,
			"api_url": apiURL,
			"config":  configPath,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Connected to %s\n", apiURL)
		fmt.Printf("Config saved to %s\n", configPath)
		if apiKey == "" {
			fmt.Println("No API key configured; requests will be unauthenticated.")
		}
	}

	return nil
}
