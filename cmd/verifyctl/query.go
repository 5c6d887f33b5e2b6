package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/healthguardlabs/verifyd/internal/verdict"
)

var (
	queryUserID    string
	querySessionID string
	showEvidence   bool
)

// queryCmd verifies a claim through the agent pipeline
var queryCmd = &cobra.Command{
	Use:   "query [claim]",
	Short: "Verify a claim against the evidence collections",
	Long: `Run a claim through the verification pipeline and print the
verdict, reasoning, and recommendations. With no claim argument the
command reads claims from stdin in a loop until EOF or "exit".

Examples:
  # Verify a claim
  verifyctl query "Does the flu vaccine give you the flu?"

  # Ask for imagery
  verifyctl query "Show me a diagram of the human heart"

  # Include the evidence list
  verifyctl query --evidence "Is the earth flat?"

  # Interactive session
  verifyctl query`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryUserID, "user", "cli-user", "user ID for memory scoping")
	queryCmd.Flags().StringVar(&querySessionID, "session", "cli-session", "session ID")
	queryCmd.Flags().BoolVar(&showEvidence, "evidence", false, "print the full evidence list")
}

// AgentQueryRequest matches internal/httpapi/server.go AgentQueryRequest
type AgentQueryRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return verifyClaim(args[0])
	}

	// Interactive mode: one claim per line until EOF or "exit".
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Enter a claim to verify (or \"exit\"):")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		claim := strings.TrimSpace(scanner.Text())
		if claim == "" {
			continue
		}
		if claim == "exit" || claim == "quit" {
			break
		}
		if err := verifyClaim(claim); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		fmt.Println()
	}
	return scanner.Err()
}

func verifyClaim(claim string) error {
	req := AgentQueryRequest{
		Query:     claim,
		UserID:    queryUserID,
		SessionID: querySessionID,
	}

	var result verdict.Result
	if err := postJSON("/api/v1/agent/query", req, &result); err != nil {
		return err
	}

	fmt.Printf("Verdict:   %s\n", result.Verdict)
	fmt.Printf("Reasoning: %s\n", result.ReasoningTrace)
	fmt.Printf("\n%s\n", result.FinalAnswer)

	if len(result.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range result.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}

	if showEvidence && len(result.Evidence) > 0 {
		fmt.Println("\nEvidence:")
		for _, e := range result.Evidence {
			fmt.Printf("  [%s %.2f] %s\n", strings.ToUpper(e.Kind), e.Score, e.Content)
		}
	}

	if len(result.Memories) > 0 {
		fmt.Println("\nPrior context:")
		for _, m := range result.Memories {
			fmt.Printf("  - %s\n", m.RawText)
		}
	}

	return nil
}
