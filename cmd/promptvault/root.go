// promptvault is the main CLI: serve (MCP over stdio), exec, dag, search,
// validate, info.
//
// Usage:
//
//	promptvault serve --prompts <dir>
//	promptvault exec --prompt <id> [--input k=v ...] [--provider mock]
//	promptvault dag -f <workflow.yaml> [--parallel]
//	promptvault search <query> [--tag t] [--author a]
//	promptvault validate --prompt <id> [--input k=v ...]
//	promptvault info <prompt-id>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promptvault/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "promptvault",
	Short: "Execute, compose, and search prompt assets",
	Long: "Promptvault runs prompt assets through a validated execution pipeline\n" +
		"with access control, dependency composition, and signed results,\n" +
		"and exposes the same surface to agents over MCP.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat, os.Stderr)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(dagCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
