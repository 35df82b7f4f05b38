package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wasmtriage/internal/config"
	"wasmtriage/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded by the persistent pre-run hook before any RunE.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wasmtriage",
	Short: "Triage WebAssembly runtime differential-fuzzing output",
	Long: `wasmtriage normalizes the diagnostics that several WebAssembly runtimes
print for the same fuzzed module, collapses a corpus to one record per
distinct bug signature, and acts as the interestingness test a reducer
calls while shrinking a failing module.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ./"+config.DefaultPath+" if present)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := c.ApplyEnv(); err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, _ := logging.ParseLevel(c.Log.Level)
	logging.Init(level, c.Log.Format, cmd.ErrOrStderr())
	cfg = c
	return nil
}
