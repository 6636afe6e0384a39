// Package main implements the modelctl CLI for manual operations against the modeld HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the modeld HTTP server
	serverURL string
	// sessionID is the target session for session-scoped commands
	sessionID string

	// declineBuild turns confirm into a decline
	declineBuild bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "modelctl",
	Short: "CLI for modeld HTTP server operations",
	Long: `modelctl is a command-line interface for interacting with the modeld HTTP server.
It provides commands for starting model builds, confirming recommendations,
watching progress, and downloading finished workbooks.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "modeld server URL")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session ID (created automatically by research)")
	confirmCmd.Flags().BoolVar(&declineBuild, "decline", false, "decline the recommended build")
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(provideCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(healthCmd)
}

var researchCmd = &cobra.Command{
	Use:   "research <company>",
	Short: "Start researching a company and recommending a model",
	Long: `Start a research run for a company name or ticker.

Examples:
  # Research by company name
  modelctl research "Reliance Industries"

  # Research by ticker
  modelctl research AAPL`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [model-type]",
	Short: "Confirm the recommended model and start the build",
	Long: `Confirm the model type for a session awaiting confirmation.
Without an argument the recommendation is accepted as-is.

Examples:
  # Accept the recommendation
  modelctl confirm --session <id>

  # Override the model type
  modelctl confirm LBO --session <id>

  # Decline the build and keep the session parked
  modelctl confirm --decline --session <id>`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfirm,
}

var provideCmd = &cobra.Command{
	Use:   "provide <field> <value>",
	Short: "Supply a missing financial figure",
	Args:  cobra.ExactArgs(2),
	RunE:  runProvide,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	RunE:  runStatus,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the session's agent log",
	RunE:  runLogs,
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask a question about the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

var downloadCmd = &cobra.Command{
	Use:   "download [output-file]",
	Short: "Download the finished workbook",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDownload,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check modeld server health",
	RunE:  runHealth,
}

func requireSession() error {
	if sessionID == "" {
		return fmt.Errorf("--session is required (research prints one)")
	}
	return nil
}

func postJSON(path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := serverURL + path
	req, err := http.NewRequest("POST", url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func getJSON(path string, out any) error {
	url := serverURL + path
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runResearch(cmd *cobra.Command, args []string) error {
	var resp struct {
		SessionID string `json:"session_id"`
		Phase     string `json:"phase"`
	}
	req := map[string]string{"query": args[0]}
	if sessionID != "" {
		req["session_id"] = sessionID
	}
	if err := postJSON("/api/research", req, &resp); err != nil {
		return err
	}
	fmt.Printf("Session:  %s\n", resp.SessionID)
	fmt.Printf("Phase:    %s\n", resp.Phase)
	fmt.Printf("\nWatch progress with:\n  modelctl logs --session %s\n", resp.SessionID)
	return nil
}

func runConfirm(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	modelType := ""
	if len(args) > 0 {
		modelType = args[0]
	}
	var resp struct {
		Phase string `json:"phase"`
	}
	err := postJSON("/api/confirm-model", map[string]any{
		"session_id": sessionID,
		"model_type": modelType,
		"confirmed":  !declineBuild,
	}, &resp)
	if err != nil {
		return err
	}
	fmt.Printf("Phase: %s\n", resp.Phase)
	return nil
}

func runProvide(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	var value float64
	if _, err := fmt.Sscanf(args[1], "%g", &value); err != nil {
		return fmt.Errorf("value must be numeric: %w", err)
	}
	var resp struct {
		Missing []string `json:"missing_fields"`
	}
	err := postJSON("/api/provide-data", map[string]any{
		"session_id": sessionID,
		"field":      args[0],
		"value":      value,
	}, &resp)
	if err != nil {
		return err
	}
	if len(resp.Missing) == 0 {
		fmt.Println("All inputs provided.")
		return nil
	}
	fmt.Println("Still missing:")
	for _, m := range resp.Missing {
		fmt.Printf("  - %s\n", m)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	var snap map[string]any
	if err := getJSON("/api/status/"+sessionID, &snap); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	var resp struct {
		Logs []struct {
			Agent    string `json:"agent"`
			Message  string `json:"message"`
			Severity string `json:"status"`
		} `json:"logs"`
		Phase string `json:"phase"`
	}
	if err := getJSON("/api/logs/"+sessionID, &resp); err != nil {
		return err
	}
	for _, entry := range resp.Logs {
		fmt.Printf("[%-8s] %s: %s\n", entry.Severity, entry.Agent, entry.Message)
	}
	fmt.Printf("\nPhase: %s\n", resp.Phase)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	var resp struct {
		Reply string `json:"reply"`
	}
	err := postJSON("/api/chat", map[string]string{
		"session_id": sessionID,
		"message":    args[0],
	}, &resp)
	if err != nil {
		return err
	}
	fmt.Println(resp.Reply)
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/download/%s", serverURL, sessionID)
	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	out := "model.xlsx"
	if len(args) > 0 {
		out = args[0]
	}
	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Printf("Saved %s (%d bytes)\n", out, n)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	var resp struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := getJSON("/health", &resp); err != nil {
		return err
	}
	fmt.Printf("Server Status: %s\n", resp.Status)
	fmt.Printf("Live Sessions: %d\n", resp.Sessions)
	return nil
}
