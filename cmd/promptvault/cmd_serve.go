package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"promptvault/internal/logging"
	mcpserver "promptvault/internal/mcp"
)

var serveFlags struct {
	promptDir string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout. Agent hosts connect via their
MCP configuration and call the prompt tools directly.

The server monitors for parent process death. When the host disconnects or
restarts, the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.promptDir, "prompts", "prompts", "directory of prompt YAML files")
}

func runServe(cmd *cobra.Command, _ []string) error {
	library, executor, registry, err := newExecutor(serveFlags.promptDir)
	if err != nil {
		return err
	}
	srv := mcpserver.NewServer(library, executor, registry)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting promptvault MCP server over stdio (parent watchdog active)",
		"prompts", serveFlags.promptDir, "providers", registry.Names())
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
