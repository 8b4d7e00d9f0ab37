// Command agencyd runs an agent session against the Agency Kernel,
// Runtime and Session Orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Best-effort .env load for local runs (API keys, overrides); a missing
	// file is not an error, matching the teacher's own godotenv.Load usage.
	_ = godotenv.Load()

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "agencyd",
		Short:        "Run and inspect agency sessions",
		SilenceUsage: true,
	}
	cmd.AddCommand(buildRunCmd(), buildReplayCmd(), buildServeCmd())
	return cmd
}
