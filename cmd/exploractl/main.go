package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
	userID    string

	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "exploractl",
	Short: "Inspect and export Explora conversations",
	Long: `Operator CLI for an Explora server.

Talks to the HTTP API with a backend or admin key and lets you list
conversations, inspect grouped threads, export learning guides and poke at
the raw store.

Quick Start:
  exploractl conversations list --user u1
  exploractl conversations show <id> --user u1
  exploractl guide <id> --format md -o guide.md
  exploractl stats`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "Explora server base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("EXPLORA_API_KEY"), "API key (backend or admin)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "Author to act as (sent as X-User-ID)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// apiGet performs an authenticated GET against the server and decodes the
// JSON response into out. Pass nil to return the raw body instead.
func apiGet(path string, out any) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, serverURL+path, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: %s", resp.Status, string(body))
	}
	if out == nil {
		return body, nil
	}
	return body, json.Unmarshal(body, out)
}
