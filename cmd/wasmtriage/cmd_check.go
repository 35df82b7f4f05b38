package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/logging"
	"wasmtriage/internal/oracle"
	"wasmtriage/internal/replay"
)

// errNotInteresting makes the process exit 1 without printing anything.
var errNotInteresting = errors.New("not interesting")

var (
	checkWorkDir string
	checkFunc    string
	checkRef     string
	checkTimeout time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check [reducer-args...] <candidate.wasm>",
	Short: "Interestingness test: exit 0 if the candidate reproduces the reference signature",
	Long: `Replays the candidate module (the last argument) with the configured
harness, normalizes the output and compares it with <WASM_DIR>/<FILENAME>.txt.
Exits 0 when they match and 1 otherwise, including on any error, so it can
be handed to a reducer as-is.

The bug context comes from WASM_DIR, FUNC_NAME and FILENAME unless the
flags below are given.`,
	Args: cobra.MinimumNArgs(1),
	FParseErrWhitelist: cobra.FParseErrWhitelist{
		UnknownFlags: true,
	},
	RunE: runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkWorkDir, "dir", "", "bug working directory (overrides $"+oracle.EnvWorkDir+")")
	f.StringVar(&checkFunc, "func", "", "exported function under test (overrides $"+oracle.EnvFuncName+")")
	f.StringVar(&checkRef, "ref", "", "reference signature name without .txt (overrides $"+oracle.EnvRefName+")")
	f.DurationVar(&checkTimeout, "timeout", 0, "replay timeout (default oracle.timeout)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := logging.New("oracle")
	octx, err := oracle.ContextFromEnv()
	if err != nil {
		log.Error("read bug context", "error", err)
		return errNotInteresting
	}
	if checkWorkDir != "" {
		octx.WorkDir = checkWorkDir
	}
	if checkFunc != "" {
		octx.FuncName = checkFunc
	}
	if checkRef != "" {
		octx.RefName = checkRef
	}
	if len(cfg.Replay.Command) == 0 {
		log.Error("no replay command configured", "hint", "set replay.command or WASMTRIAGE_REPLAY_COMMAND")
		return errNotInteresting
	}

	o := &oracle.Oracle{
		Context:    octx,
		Replayer:   &replay.Command{Argv: cfg.Replay.Command, Env: cfg.Replay.Env, Dir: cfg.Replay.Dir},
		Normalizer: &dedup.Deduper{Options: dedup.Options{MinLines: cfg.Dedup.MinLines, Workers: 1, Logger: logging.New("dedup")}},
		Timeout:    cfg.Oracle.Timeout.Std(),
		Logger:     log,
	}
	if checkTimeout > 0 {
		o.Timeout = checkTimeout
	}

	// Trial cleanup still runs when the reducer interrupts or terminates us.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !o.Interesting(ctx, args) {
		return errNotInteresting
	}
	fmt.Fprintln(cmd.OutOrStdout(), "interesting")
	return nil
}
