package mcp

import (
	"context"
	"os"
	"time"

	"promptvault/internal/logging"
)

// WatchParent polls the parent PID in a background goroutine and calls
// cancelFn when it changes, which means the MCP host that spawned us is
// gone. A stdio server without this keeps running headless after its host
// exits, piling up orphaned processes.
//
// Polling the PID is deliberate: stdin belongs exclusively to the SDK's
// StdioTransport, and reading even one byte here would corrupt the JSON-RPC
// stream. The goroutine exits on ctx cancellation or once shutdown fires.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	const pollInterval = 2 * time.Second

	ppid := os.Getppid()
	logger := logging.New("mcp-watchdog")
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					logger.Warn("parent process died, initiating shutdown", "was_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
