// Package oracle implements the interestingness test a delta-debugging
// reducer calls once per shrink trial: does this candidate still produce
// the same normalized diagnostics as the stored reference?
//
// Layout under the bug's working directory:
//
//	<work>/<ref>.txt                                 reference signature
//	<work>/reduced/temp__<func>.wasm                         candidate copy
//	<work>/reduced/output/temp__<func>__<func>.txt           raw replay output
//	<work>/reduced/output/deduped/temp__<func>__<func>.txt   normalized replay output
//	<work>/reduced/.oracle.lock                              advisory lock
//
// Only one trial may use a working directory at a time. A second trial
// that finds the lock held gets ErrBusy. The lock file itself persists
// between trials; only the held lock matters.
package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"wasmtriage/internal/dedup"
	"wasmtriage/internal/logging"
	"wasmtriage/internal/replay"
)

// Environment variables a reducer uses to hand the oracle its context.
const (
	EnvWorkDir  = "WASM_DIR"
	EnvFuncName = "FUNC_NAME"
	EnvRefName  = "FILENAME"
)

// ReducedDir is the per-bug scratch directory name.
const ReducedDir = "reduced"

const lockName = ".oracle.lock"

var (
	ErrMissingCandidate = errors.New("oracle: no candidate path")
	ErrMissingContext   = errors.New("oracle: missing working dir, function or reference name")
	ErrBusy             = errors.New("oracle: working directory in use by another trial")
)

// Context identifies the bug under reduction.
type Context struct {
	WorkDir  string `envconfig:"WASM_DIR"`
	FuncName string `envconfig:"FUNC_NAME"`
	RefName  string `envconfig:"FILENAME"`
}

// ContextFromEnv reads WASM_DIR, FUNC_NAME and FILENAME. Unset variables
// leave their field empty; Check reports that as ErrMissingContext.
func ContextFromEnv() (Context, error) {
	var c Context
	if err := envconfig.Process("", &c); err != nil {
		return Context{}, fmt.Errorf("oracle: read bug context from environment: %w", err)
	}
	return c, nil
}

// Valid reports whether every field is set.
func (c Context) Valid() bool {
	return c.WorkDir != "" && c.FuncName != "" && c.RefName != ""
}

// ReferencePath is the stored signature the trial is compared against.
func (c Context) ReferencePath() string {
	return filepath.Join(c.WorkDir, c.RefName+dedup.RecordExt)
}

// Paths are the per-trial locations derived from a Context.
type Paths struct {
	Reduced   string
	Candidate string
	OutputDir string
	RawOutput string
	Deduped   string
	Lock      string
}

// Paths derives the trial layout.
func (c Context) Paths() Paths {
	reduced := filepath.Join(c.WorkDir, ReducedDir)
	out := filepath.Join(reduced, replay.OutputDir)
	name := replay.OutputName(c.FuncName)
	return Paths{
		Reduced:   reduced,
		Candidate: filepath.Join(reduced, replay.CandidateName(c.FuncName)),
		OutputDir: out,
		RawOutput: filepath.Join(out, name),
		Deduped:   filepath.Join(out, dedup.DedupedDir, name),
		Lock:      filepath.Join(reduced, lockName),
	}
}

// transient lists the files a trial creates and must remove.
func (p Paths) transient() []string {
	return []string{p.Candidate, p.RawOutput, p.Deduped}
}

// Normalizer turns the named raw outputs in dir into deduped signatures.
type Normalizer interface {
	RunFiles(ctx context.Context, dir string, names ...string) (*dedup.Result, error)
}

// Verdict is the outcome of one trial with its diagnostics.
type Verdict struct {
	Interesting bool
	Reference   string
	Fresh       string
	ExitCode    int
	TimedOut    bool
	Elapsed     time.Duration
}

// Oracle decides whether candidates are interesting.
type Oracle struct {
	Context    Context
	Replayer   replay.Replayer
	Normalizer Normalizer

	// Timeout bounds one replay; zero means no limit. Expiry is "not interesting".
	Timeout time.Duration
	Logger  *slog.Logger
}

func (o *Oracle) log() *slog.Logger {
	if o.Logger == nil {
		return logging.New("oracle")
	}
	return o.Logger
}

func (o *Oracle) normalizer() Normalizer {
	if o.Normalizer == nil {
		return &dedup.Deduper{Options: dedup.Options{Logger: o.log()}}
	}
	return o.Normalizer
}

// Interesting is the boolean predicate: args are the reducer's arguments,
// the last of which is the candidate path. Every failure is false.
func (o *Oracle) Interesting(ctx context.Context, args []string) bool {
	v, err := o.Check(ctx, args)
	if err != nil {
		o.log().Warn("trial failed", "error", err)
		return false
	}
	return v.Interesting
}

// Check runs one trial. Missing arguments or context return an error
// before anything on disk is touched. Once the trial starts, per-trial
// files are removed on every return path.
func (o *Oracle) Check(ctx context.Context, args []string) (*Verdict, error) {
	if len(args) == 0 || args[len(args)-1] == "" {
		return nil, ErrMissingCandidate
	}
	if !o.Context.Valid() {
		return nil, ErrMissingContext
	}
	if o.Replayer == nil {
		return nil, fmt.Errorf("oracle: no replayer configured")
	}
	candidate := args[len(args)-1]
	paths := o.Context.Paths()
	log := o.log().With("func", o.Context.FuncName)

	if err := os.MkdirAll(paths.Reduced, 0o755); err != nil {
		return nil, fmt.Errorf("oracle: create %s: %w", paths.Reduced, err)
	}
	unlock, err := o.lock(paths.Lock)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Leftovers from an interrupted trial would be read as fresh output.
	removeAll(log, paths.transient())
	defer removeAll(log, paths.transient())

	start := time.Now()
	v := &Verdict{}
	defer func() { v.Elapsed = time.Since(start) }()

	if err := copyFile(candidate, paths.Candidate); err != nil {
		return nil, fmt.Errorf("oracle: copy candidate: %w", err)
	}

	rctx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	res, err := o.Replayer.Replay(rctx, replay.Request{
		Candidate:  paths.Candidate,
		FuncName:   o.Context.FuncName,
		ReducedDir: paths.Reduced,
	})
	if res != nil {
		v.ExitCode = res.ExitCode
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		v.TimedOut = true
		log.Info("replay timed out", "timeout", o.Timeout)
		return v, nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("oracle: %w", ctx.Err())
	case err != nil:
		// Whatever the harness managed to write is still compared.
		log.Warn("replay failed", "error", err)
	}

	if _, err := o.normalizer().RunFiles(ctx, paths.OutputDir, replay.OutputName(o.Context.FuncName)); err != nil {
		log.Warn("normalize replay output", "error", err)
	}

	v.Reference = readTrimmed(o.Context.ReferencePath())
	v.Fresh = readTrimmed(paths.Deduped)
	v.Interesting = v.Reference == v.Fresh

	log.Debug("compared outputs",
		"ref_path", o.Context.ReferencePath(),
		"ref", v.Reference,
		"new_path", paths.Deduped,
		"new", v.Fresh,
	)
	log.Info("trial decided", "interesting", v.Interesting, "exit_code", v.ExitCode)
	return v, nil
}

// lock holds the working directory's advisory lock until the returned
// func runs.
func (o *Oracle) lock(path string) (func(), error) {
	f, err := acquire(path)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}
	return func() { _ = f.Close() }, nil
}

func removeAll(log *slog.Logger, paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("cleanup", "path", p, "error", err)
		}
	}
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(data))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
