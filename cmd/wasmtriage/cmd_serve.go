package main

import (
	"context"

	"github.com/spf13/cobra"

	"wasmtriage/internal/logging"
	mcpserver "wasmtriage/internal/mcp"
	"wasmtriage/internal/store"
)

var serveDB string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout offering normalize_line,
build_signature and classify. With a catalog (--db or store.path) it also
offers lookup_signature.

The server exits when its parent process goes away.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDB, "db", "", "catalog backing lookup_signature (default store.path)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	var st store.Store
	if path := firstNonEmpty(serveDB, cfg.Store.Path); path != "" {
		sql, err := store.Open(path)
		if err != nil {
			return err
		}
		defer sql.Close()
		st = sql
	}
	srv := mcpserver.NewServer(version, st)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	mcpserver.WatchParent(ctx, mcpserver.ParentPollInterval, cancel)

	logging.New("mcp").Info("starting wasmtriage MCP server over stdio", "catalog", st != nil)
	return srv.Run(ctx)
}
