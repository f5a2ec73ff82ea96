package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reflow",
		Short: "Fine-grained reactive state graphs for Go",
		Long: `Reflow maintains a dependency graph between pieces of state and the
computations reading them, recomputing only what a change actually
reaches. Features include:

  • Cells, computed nodes, effects, and views
  • Coalesced, glitch-free change propagation
  • Async resources with supersession
  • Prometheus metrics and OpenTelemetry tracing
  • A live devtools endpoint for inspecting running graphs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
