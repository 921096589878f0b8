package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/config"
)

var statusHost string
var statusPort int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running session's gateway for its state",
	Long: `Query the /status endpoint of a session started with --gateway.
Prints the agent state, queue depth and connected observers.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusHost, "host", "", "gateway host (default from config)")
	statusCmd.Flags().IntVar(&statusPort, "port", 0, "gateway port (default from config)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	host := cfg.Gateway.Host
	if statusHost != "" {
		host = statusHost
	}
	port := cfg.Gateway.Port
	if statusPort != 0 {
		port = statusPort
	}

	client := &http.Client{Timeout: 3 * time.Second}
	url := fmt.Sprintf("http://%s:%d/status", host, port)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("no session reachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	var body struct {
		State      string `json:"state"`
		QueueDepth int    `json:"queue_depth"`
		Observers  int    `json:"observers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("malformed status response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "state:     %s\n", body.State)
	fmt.Fprintf(out, "queued:    %d\n", body.QueueDepth)
	fmt.Fprintf(out, "observers: %d\n", body.Observers)
	return nil
}
