// glscript runs automation scripts written in a small Python-like language.
//
// Scripts in the configured folder define functions; decorators such as
// @time_trigger, @state_trigger and @event_trigger decide when they run,
// and @service exposes them as callable services. State and events reach
// the engine over MQTT and the HTTP API.
//
// Usage:
//
//	glscript run [--config path]
//	glscript check script.py ... [--dump]
//	glscript eval 'expression or file'
//	glscript next 'cron(0 7 * * mon-fri)' [--now RFC3339] [--count N]
//	glscript hash-password
//	glscript version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "glscript",
		Short:         "Script automation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newEvalCmd(),
		newNextCmd(),
		newHashPasswordCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glscript %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses the GLSCRIPT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GLSCRIPT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
