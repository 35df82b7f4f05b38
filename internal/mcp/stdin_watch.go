package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ParentPollInterval is how often WatchParent checks the parent PID.
const ParentPollInterval = 2 * time.Second

// WatchParent cancels the server when its parent process goes away, so a
// client that dies without closing stdin does not leave the server behind.
// It must not read stdin: the stdio transport owns it.
func WatchParent(ctx context.Context, interval time.Duration, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					slog.Warn("parent process exited, shutting down", "component", "mcp", "ppid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
