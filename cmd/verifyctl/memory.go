package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/healthguardlabs/verifyd/internal/memory"
)

// memoryCmd groups memory inspection subcommands
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage per-user memory",
}

var memoryShowUserID string

// memoryShowCmd recalls memories for a user
var memoryShowCmd = &cobra.Command{
	Use:   "show <query>",
	Short: "Recall memories semantically similar to a query",
	Long: `Recall a user's memories by semantic similarity. Note that
recall reinforces the returned records.

Examples:
  verifyctl memory show --user alice "flu vaccines"`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoryShow,
}

// memoryForgetCmd deletes a memory by ID
var memoryForgetCmd = &cobra.Command{
	Use:   "forget <memory-id>",
	Short: "Delete a memory record",
	Long: `Delete a memory record by its ID.

Examples:
  verifyctl memory forget 3a9f2c4e-1b7d-4c2a-9f10-8e4d5b6a7c8d`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoryForget,
}

func init() {
	memoryShowCmd.Flags().StringVar(&memoryShowUserID, "user", "cli-user", "user ID")
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryForgetCmd)
}

// MemoryResponse matches internal/httpapi/server.go MemoryResponse
type MemoryResponse struct {
	Memories []memory.Record `json:"memories"`
}

// StatusResponse matches internal/httpapi/server.go StatusResponse
type StatusResponse struct {
	Status string `json:"status"`
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	params.Set("user_id", memoryShowUserID)
	params.Set("query", args[0])

	var resp MemoryResponse
	if err := getJSON("/api/v1/memory?"+params.Encode(), &resp); err != nil {
		return err
	}

	if len(resp.Memories) == 0 {
		fmt.Println("No memories found.")
		return nil
	}

	for _, m := range resp.Memories {
		fmt.Printf("%s  [%s]  weight=%.1f  accesses=%d\n  %s\n",
			m.ID, m.MemoryType, m.DecayWeight, m.AccessCount, m.RawText)
	}
	return nil
}

func runMemoryForget(cmd *cobra.Command, args []string) error {
	var resp StatusResponse
	if err := deleteJSON("/api/v1/memory/"+args[0], &resp); err != nil {
		return err
	}

	fmt.Printf("Deleted memory %s\n", args[0])
	return nil
}
